package book

import "fmt"

// Order is a single resting or aggressing instruction against a book. The
// caller supplies ID, ClientID, Side, Kind, Price (ignored for market
// orders) and Quantity; ArrivalNs is the priority timestamp assigned by the
// book's owner before the order reaches AddOrder (for a venue, this is the
// moment the delay line releases it, not the wire arrival time).
type Order struct {
	ID        uint64
	ClientID  string
	Side      Side
	Kind      Kind
	Price     float64
	Quantity  float64
	Remaining float64
	ArrivalNs int64
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d client=%s side=%s kind=%s price=%.6f qty=%.6f remaining=%.6f}",
		o.ID, o.ClientID, o.Side, o.Kind, o.Price, o.Quantity, o.Remaining,
	)
}

// Trade is an execution between an aggressing order and a resting order.
// Price is always the maker's (resting order's) price.
type Trade struct {
	TakerOrderID  uint64
	TakerClientID string
	MakerOrderID  uint64
	MakerClientID string
	Price         float64
	Quantity      float64
	TimestampNs   int64
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{taker=%d/%s maker=%d/%s price=%.6f qty=%.6f ts=%d}",
		t.TakerOrderID, t.TakerClientID, t.MakerOrderID, t.MakerClientID, t.Price, t.Quantity, t.TimestampNs,
	)
}
