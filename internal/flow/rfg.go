// Package flow implements the random background flow generator that drives
// each venue's book with synthetic resting liquidity and aggressive
// crossings so the market moves even when a strategy is idle.
package flow

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"pockettrader/internal/book"
)

const startOrderID uint64 = 1_000_000_000

// Config parameterizes a single venue's background flow.
type Config struct {
	Venue      string
	BasePrice  float64
	Volatility float64
	PPost      float64 // probability of posting a resting limit order per step
	PCross     float64 // probability of crossing with a market order per step
	MinQty     float64
	MaxQty     float64
}

// WithDefaults fills zero-valued fields with the reference implementation's
// defaults.
func (c Config) WithDefaults() Config {
	if c.PPost == 0 {
		c.PPost = 0.4
	}
	if c.PCross == 0 {
		c.PCross = 0.2
	}
	if c.MinQty == 0 {
		c.MinQty = 0.01
	}
	if c.MaxQty == 0 {
		c.MaxQty = 0.1
	}
	return c
}

// Generator is the per-venue synthetic flow source.
type Generator struct {
	cfg      Config
	mid      float64
	nextID   uint64
	clientID string
	rng      *rand.Rand
	move     distuv.Normal
}

// New constructs a generator seeded from seed for reproducible runs.
func New(cfg Config, seed int64) *Generator {
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(seed))
	return &Generator{
		cfg:      cfg,
		mid:      cfg.BasePrice,
		nextID:   startOrderID,
		clientID: "BG_" + cfg.Venue,
		rng:      rng,
		move:     distuv.Normal{Mu: 0, Sigma: cfg.Volatility, Src: rng},
	}
}

// Step advances the synthetic mid price by a Gaussian increment (floored at
// a positive value if it crosses zero) and, with configured probabilities,
// produces a resting limit order and/or an aggressive market order against
// b's current best opposite quote. Produced orders carry no ArrivalNs; the
// caller sets it before adding them to the book.
func (g *Generator) Step(b *book.Book) []*book.Order {
	g.mid += g.move.Rand()
	if g.mid <= 0 {
		g.mid = math.Abs(g.mid) + 1.0
	}

	var produced []*book.Order

	if g.rng.Float64() < g.cfg.PPost {
		side := g.randomSide()
		offset := g.rng.Float64() * 1.5
		price := g.mid - offset
		if side == book.Sell {
			price = g.mid + offset
		}
		produced = append(produced, g.newOrder(side, book.Limit, price, g.randomQty()))
	}

	if g.rng.Float64() < g.cfg.PCross {
		side := g.randomSide()
		var canCross bool
		switch side {
		case book.Buy:
			_, _, canCross = b.BestAsk()
		case book.Sell:
			_, _, canCross = b.BestBid()
		}
		if canCross {
			produced = append(produced, g.newOrder(side, book.Market, 0, g.randomQty()))
		}
	}

	return produced
}

func (g *Generator) randomSide() book.Side {
	if g.rng.Intn(2) == 1 {
		return book.Sell
	}
	return book.Buy
}

func (g *Generator) randomQty() float64 {
	return g.cfg.MinQty + g.rng.Float64()*(g.cfg.MaxQty-g.cfg.MinQty)
}

func (g *Generator) newOrder(side book.Side, kind book.Kind, price, qty float64) *book.Order {
	id := g.nextID
	g.nextID++
	return &book.Order{
		ID:       id,
		ClientID: g.clientID,
		Side:     side,
		Kind:     kind,
		Price:    price,
		Quantity: qty,
	}
}
