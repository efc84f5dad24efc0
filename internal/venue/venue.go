// Package venue implements the single-threaded cooperative event loop that
// composes an order book, a random flow generator, and two delay lines
// into a runnable exchange simulator: it ingests orders over UDP, matches
// them, and publishes ticks and fills under a configurable latency model.
package venue

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"pockettrader/internal/book"
	"pockettrader/internal/delay"
	"pockettrader/internal/flow"
	"pockettrader/internal/metrics"
	"pockettrader/internal/wire"
)

const orderPollTimeout = 5 * time.Millisecond

// Config is a venue simulator's full configuration surface.
type Config struct {
	ExchID     string
	Symbol     string
	BasePrice  float64
	Volatility float64
	TickSize   float64
	TickHz     float64

	OrderListenAddr string // udp, e.g. "0.0.0.0:9101"
	FeedTargetAddr  string // udp, e.g. "127.0.0.1:8101"
	FillTargetAddr  string // udp, e.g. "127.0.0.1:7100"

	OrderLatencyMeanUs float64
	OrderLatencyStdUs  float64
	FeedLatencyMeanUs  float64
	FeedLatencyStdUs   float64

	Seed int64

	// MetricsRegisterer is where this venue's counters are registered. A
	// nil value defaults to prometheus.DefaultRegisterer; tests should
	// supply a fresh registry so repeated construction doesn't collide.
	MetricsRegisterer prometheus.Registerer
}

type scheduledOrder struct {
	order *book.Order
}

type scheduledTick struct {
	bid, ask float64
	seq      uint64
}

// Simulator is one venue's runnable event loop.
type Simulator struct {
	cfg Config
	bk  *book.Book
	rfg *flow.Generator

	orderLine *delay.Line[scheduledOrder]
	tickLine  *delay.Line[scheduledTick]

	orderLatency *delay.Model
	feedLatency  *delay.Model

	orderConn *net.UDPConn
	feedConn  *net.UDPConn
	fillConn  *net.UDPConn

	tickIntervalNs int64
	lastTickNs     int64
	seq            uint64
	synthMid       float64

	metrics *metrics.Venue
}

// New binds the venue's three UDP endpoints and constructs its book, flow
// generator, and delay lines.
func New(cfg Config) (*Simulator, error) {
	if cfg.TickHz <= 0 {
		cfg.TickHz = 50
	}

	orderAddr, err := net.ResolveUDPAddr("udp", cfg.OrderListenAddr)
	if err != nil {
		return nil, fmt.Errorf("venue: resolve order listen addr: %w", err)
	}
	orderConn, err := net.ListenUDP("udp", orderAddr)
	if err != nil {
		return nil, fmt.Errorf("venue: listen order socket: %w", err)
	}

	feedAddr, err := net.ResolveUDPAddr("udp", cfg.FeedTargetAddr)
	if err != nil {
		return nil, fmt.Errorf("venue: resolve feed target addr: %w", err)
	}
	feedConn, err := net.DialUDP("udp", nil, feedAddr)
	if err != nil {
		return nil, fmt.Errorf("venue: dial feed socket: %w", err)
	}

	fillAddr, err := net.ResolveUDPAddr("udp", cfg.FillTargetAddr)
	if err != nil {
		return nil, fmt.Errorf("venue: resolve fill target addr: %w", err)
	}
	fillConn, err := net.DialUDP("udp", nil, fillAddr)
	if err != nil {
		return nil, fmt.Errorf("venue: dial fill socket: %w", err)
	}

	rfg := flow.New(flow.Config{
		Venue:      cfg.ExchID,
		BasePrice:  cfg.BasePrice,
		Volatility: cfg.Volatility,
	}, cfg.Seed)

	return &Simulator{
		cfg:            cfg,
		bk:             book.New(cfg.Symbol, cfg.TickSize),
		rfg:            rfg,
		orderLine:      delay.NewLine[scheduledOrder](),
		tickLine:       delay.NewLine[scheduledTick](),
		orderLatency:   delay.NewModel(cfg.OrderLatencyMeanUs*1000, cfg.OrderLatencyStdUs*1000),
		feedLatency:    delay.NewModel(cfg.FeedLatencyMeanUs*1000, cfg.FeedLatencyStdUs*1000),
		orderConn:      orderConn,
		feedConn:       feedConn,
		fillConn:       fillConn,
		tickIntervalNs: int64(float64(time.Second) / cfg.TickHz),
		synthMid:       cfg.BasePrice,
		metrics:        metrics.NewVenue(cfg.ExchID, cfg.MetricsRegisterer),
	}, nil
}

// Close releases the venue's sockets.
func (s *Simulator) Close() {
	s.orderConn.Close()
	s.feedConn.Close()
	s.fillConn.Close()
}

// Run executes the event loop until dying is closed. Each iteration polls
// the order socket, releases expired order-delay entries into the book,
// advances the random flow generator, snapshots the book into the tick
// delay line on schedule, and releases expired tick-delay entries — in
// that fixed order.
func (s *Simulator) Run(dying <-chan struct{}) error {
	buf := make([]byte, 2048)
	for {
		select {
		case <-dying:
			return nil
		default:
		}

		now := time.Now().UnixNano()

		s.pollOrderSocket(buf, now)
		s.releaseOrders(now)
		s.stepFlow(now)
		s.maybeSnapshotTick(now)
		s.releaseTicks(now)
	}
}

func (s *Simulator) pollOrderSocket(buf []byte, now int64) {
	s.orderConn.SetReadDeadline(time.Now().Add(orderPollTimeout))
	n, _, err := s.orderConn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		log.Error().Err(err).Str("exch_id", s.cfg.ExchID).Msg("order socket read error")
		return
	}
	if n == 0 {
		return
	}
	s.handleInbound(string(buf[:n]), now)
}

func (s *Simulator) handleInbound(msg string, now int64) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "NEW":
		s.handleNew(msg, now)
	case "CXL":
		s.handleCancel(msg)
	default:
		log.Warn().Str("msg", msg).Msg("venue: dropped unknown message type")
	}
}

func (s *Simulator) handleNew(msg string, now int64) {
	no, err := wire.ParseNew(msg)
	if err != nil {
		log.Warn().Err(err).Str("msg", msg).Msg("venue: dropped malformed NEW")
		return
	}
	side := book.Buy
	if no.Side == 'S' {
		side = book.Sell
	}
	kind := book.Limit
	if no.Kind == 'M' {
		kind = book.Market
	}

	scheduled := now + s.orderLatency.SampleNs()
	o := &book.Order{
		ID:        no.OrderID,
		ClientID:  no.ClientID,
		Side:      side,
		Kind:      kind,
		Price:     no.Price,
		Quantity:  no.Qty,
		ArrivalNs: scheduled,
	}
	s.orderLine.Schedule(scheduled, scheduledOrder{order: o})
}

func (s *Simulator) handleCancel(msg string) {
	c, err := wire.ParseCancel(msg)
	if err != nil {
		log.Warn().Err(err).Str("msg", msg).Msg("venue: dropped malformed CXL")
		return
	}
	// Cancels bypass the order delay line and apply immediately.
	if s.bk.CancelOrder(c.OrderID) {
		s.metrics.CancelsTotal.Inc()
	} else {
		log.Debug().Uint64("order_id", c.OrderID).Msg("venue: cancel for unknown or inactive order")
	}
}

func (s *Simulator) releaseOrders(now int64) {
	for _, so := range s.orderLine.Release(now) {
		trades, err := s.bk.AddOrder(so.order)
		if err != nil {
			log.Warn().Err(err).Uint64("order_id", so.order.ID).Msg("venue: rejected order")
			continue
		}
		s.metrics.OrdersProcessed.Inc()
		for _, tr := range trades {
			s.metrics.TradesMatched.Inc()
			s.emitFill(tr)
		}
	}
}

func (s *Simulator) stepFlow(now int64) {
	for _, o := range s.rfg.Step(s.bk) {
		o.ArrivalNs = now
		trades, err := s.bk.AddOrder(o)
		if err != nil {
			continue
		}
		for _, tr := range trades {
			s.metrics.TradesMatched.Inc()
			s.emitFill(tr)
		}
	}
}

func (s *Simulator) maybeSnapshotTick(now int64) {
	if now-s.lastTickNs < s.tickIntervalNs {
		return
	}
	s.lastTickNs = now

	bidPx, _, bidOk := s.bk.BestBid()
	askPx, _, askOk := s.bk.BestAsk()

	var bid, ask float64
	switch {
	case bidOk && askOk:
		bid, ask = bidPx, askPx
	case bidOk && !askOk:
		bid = bidPx
		ask = bidPx + 0.5
	case !bidOk && askOk:
		ask = askPx
		bid = askPx - 0.5
	default:
		bid = s.synthMid - 0.25
		ask = s.synthMid + 0.25
	}
	s.synthMid = (bid + ask) / 2
	s.seq++

	scheduled := now + s.feedLatency.SampleNs()
	s.tickLine.Schedule(scheduled, scheduledTick{bid: bid, ask: ask, seq: s.seq})
}

func (s *Simulator) releaseTicks(now int64) {
	for _, t := range s.tickLine.Release(now) {
		tick := wire.Tick{
			ExchID: s.cfg.ExchID,
			Symbol: s.cfg.Symbol,
			Bid:    t.bid,
			Ask:    t.ask,
			Seq:    t.seq,
			TsNs:   time.Now().UnixNano(),
		}
		if _, err := s.feedConn.Write([]byte(tick.Serialize())); err != nil {
			log.Error().Err(err).Msg("venue: tick send failed")
			continue
		}
		s.metrics.TicksPublished.Inc()
	}
}

func (s *Simulator) emitFill(tr book.Trade) {
	fill := wire.Fill{
		ExchID:        s.cfg.ExchID,
		Symbol:        s.cfg.Symbol,
		Price:         tr.Price,
		Qty:           tr.Quantity,
		TakerClientID: tr.TakerClientID,
		TakerOrderID:  tr.TakerOrderID,
		MakerClientID: tr.MakerClientID,
		MakerOrderID:  tr.MakerOrderID,
		TsNs:          time.Now().UnixNano(),
	}
	if _, err := s.fillConn.Write([]byte(fill.Serialize())); err != nil {
		log.Error().Err(err).Msg("venue: fill send failed")
	}
}
