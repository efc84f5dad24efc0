// Package book implements a single-symbol, price-time-priority limit order
// book: partial fills, resting limit orders, immediate-or-discard market
// orders, and cancel by id (an O(1) id-index lookup, then a linear scan of
// the order's price level to remove it). It performs no I/O; the venue loop
// owns the clock and the wire.
package book

import (
	"errors"
	"math"

	"github.com/tidwall/btree"
)

var (
	// ErrInvalidOrder is returned for a malformed side/kind or a negative quantity.
	ErrInvalidOrder = errors.New("book: invalid order")
)

const (
	// qtyEpsilon collapses a resting order once its remaining quantity falls
	// to or below this threshold.
	qtyEpsilon = 1e-9
	// priceEpsilon is the tolerance used when deciding whether a limit price
	// crosses the opposite side's best price.
	priceEpsilon = 1e-12
)

type levels = btree.BTreeG[*priceLevel]

// Book is a single-symbol order book.
type Book struct {
	Symbol   string
	TickSize float64

	bids *levels // best (highest) bid first
	asks *levels // best (lowest) ask first

	byID map[uint64]*Order
}

// New constructs an empty book for symbol at the given tick size. A
// non-positive tick size disables rounding (prices are used as supplied).
func New(symbol string, tickSize float64) *Book {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price > b.price })
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price < b.price })
	return &Book{
		Symbol:   symbol,
		TickSize: tickSize,
		bids:     bids,
		asks:     asks,
		byID:     make(map[uint64]*Order),
	}
}

// roundToTick rounds price to the book's tick grid using round-half-to-even,
// matching the reference implementation's use of Python's round().
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.RoundToEven(price/tick) * tick
}

// AddOrder admits a new order into the book. Limit prices are rounded to
// the tick grid. The order matches against the opposite side under
// price-time priority; any residual of a limit order rests on its own
// side. An unfilled market order's residual is discarded silently. Trades
// are returned in execution order; trade price is always the resting
// (maker) order's price.
func (b *Book) AddOrder(o *Order) ([]Trade, error) {
	if o.Side != Buy && o.Side != Sell {
		return nil, ErrInvalidOrder
	}
	if o.Kind != Limit && o.Kind != Market {
		return nil, ErrInvalidOrder
	}
	if o.Quantity < 0 {
		return nil, ErrInvalidOrder
	}
	if o.Quantity == 0 {
		return nil, nil
	}
	if o.Kind == Limit {
		o.Price = roundToTick(o.Price, b.TickSize)
	}
	o.Remaining = o.Quantity

	var trades []Trade
	switch o.Side {
	case Buy:
		trades = b.match(o, b.asks, func(restPrice float64) bool {
			return o.Kind == Market || o.Price >= restPrice-priceEpsilon
		})
	case Sell:
		trades = b.match(o, b.bids, func(restPrice float64) bool {
			return o.Kind == Market || o.Price <= restPrice+priceEpsilon
		})
	}

	if o.Kind == Limit && o.Remaining > qtyEpsilon {
		b.rest(o)
	}
	return trades, nil
}

// match sweeps the opposite side's levels (best first, per the tree's own
// ordering) consuming resting orders against the incoming order until it
// is exhausted, the book is exhausted, or the incoming limit no longer
// crosses. crosses reports whether the incoming order still crosses a
// resting price.
func (b *Book) match(incoming *Order, opposite *levels, crosses func(restPrice float64) bool) []Trade {
	var trades []Trade
	for incoming.Remaining > qtyEpsilon {
		level, ok := opposite.MinMut()
		if !ok || !crosses(level.price) {
			break
		}
		for len(level.orders) > 0 && incoming.Remaining > qtyEpsilon {
			maker := level.orders[0]
			qty := math.Min(incoming.Remaining, maker.Remaining)
			incoming.Remaining -= qty
			maker.Remaining -= qty

			trades = append(trades, Trade{
				TakerOrderID:  incoming.ID,
				TakerClientID: incoming.ClientID,
				MakerOrderID:  maker.ID,
				MakerClientID: maker.ClientID,
				Price:         level.price,
				Quantity:      qty,
				TimestampNs:   incoming.ArrivalNs,
			})

			if maker.Remaining <= qtyEpsilon {
				level.popHead()
				delete(b.byID, maker.ID)
			}
		}
		if len(level.orders) == 0 {
			opposite.Delete(level)
		}
	}
	return trades
}

// rest posts a limit order's residual quantity at the back of its price
// level, creating the level if it did not already exist.
func (b *Book) rest(o *Order) {
	var side *levels
	switch o.Side {
	case Buy:
		side = b.bids
	case Sell:
		side = b.asks
	}

	if lvl, ok := side.GetMut(&priceLevel{price: o.Price}); ok {
		lvl.orders = append(lvl.orders, o)
	} else {
		side.Set(&priceLevel{price: o.Price, orders: []*Order{o}})
	}
	b.byID[o.ID] = o
}

// CancelOrder removes a resting order by id, reporting whether an active
// order with that id existed. Cancelling an unknown or already-filled id
// returns false.
func (b *Book) CancelOrder(id uint64) bool {
	o, ok := b.byID[id]
	if !ok {
		return false
	}

	var side *levels
	switch o.Side {
	case Buy:
		side = b.bids
	case Sell:
		side = b.asks
	}

	lvl, ok := side.GetMut(&priceLevel{price: o.Price})
	if !ok {
		delete(b.byID, id)
		return false
	}
	for i, resting := range lvl.orders {
		if resting.ID == id {
			lvl.remove(i)
			break
		}
	}
	if len(lvl.orders) == 0 {
		side.Delete(lvl)
	}
	delete(b.byID, id)
	return true
}

// BestBid returns the best bid price and the aggregate remaining quantity
// resting at that price.
func (b *Book) BestBid() (price, qty float64, ok bool) {
	lvl, ok := b.bids.Min()
	if !ok {
		return 0, 0, false
	}
	return lvl.price, levelQuantity(lvl), true
}

// BestAsk returns the best ask price and the aggregate remaining quantity
// resting at that price.
func (b *Book) BestAsk() (price, qty float64, ok bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return 0, 0, false
	}
	return lvl.price, levelQuantity(lvl), true
}

// TopOfBook returns the best bid and ask simultaneously.
func (b *Book) TopOfBook() (bidPx, bidQty, askPx, askQty float64, bidOk, askOk bool) {
	bidPx, bidQty, bidOk = b.BestBid()
	askPx, askQty, askOk = b.BestAsk()
	return
}

func levelQuantity(lvl *priceLevel) float64 {
	var total float64
	for _, o := range lvl.orders {
		total += o.Remaining
	}
	return total
}
