package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook() *Book {
	return New("TEST", 0.01)
}

func TestAddOrder_LimitRests(t *testing.T) {
	b := newTestBook()

	trades, err := b.AddOrder(&Order{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 100, Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, trades)

	price, qty, ok := b.BestBid()
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, 1.0, qty)

	_, _, ok = b.BestAsk()
	assert.False(t, ok)
}

func TestAddOrder_LimitCrossesPartial(t *testing.T) {
	b := newTestBook()
	_, err := b.AddOrder(&Order{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 100, Quantity: 1})
	require.NoError(t, err)

	trades, err := b.AddOrder(&Order{ID: 2, ClientID: "C2", Side: Sell, Kind: Limit, Price: 100, Quantity: 0.4})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 100.0, trades[0].Price)
	assert.Equal(t, 0.4, trades[0].Quantity)
	assert.Equal(t, uint64(2), trades[0].TakerOrderID)
	assert.Equal(t, uint64(1), trades[0].MakerOrderID)

	price, qty, ok := b.BestBid()
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.InDelta(t, 0.6, qty, 1e-9)
}

func TestAddOrder_MarketSweep(t *testing.T) {
	b := newTestBook()
	_, err := b.AddOrder(&Order{ID: 1, ClientID: "M1", Side: Sell, Kind: Limit, Price: 101, Quantity: 0.5})
	require.NoError(t, err)
	_, err = b.AddOrder(&Order{ID: 2, ClientID: "M2", Side: Sell, Kind: Limit, Price: 102, Quantity: 1.0})
	require.NoError(t, err)

	trades, err := b.AddOrder(&Order{ID: 3, ClientID: "C3", Side: Buy, Kind: Market, Quantity: 0.7})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, 101.0, trades[0].Price)
	assert.Equal(t, 0.5, trades[0].Quantity)
	assert.Equal(t, 102.0, trades[1].Price)
	assert.InDelta(t, 0.2, trades[1].Quantity, 1e-9)

	price, qty, ok := b.BestAsk()
	assert.True(t, ok)
	assert.Equal(t, 102.0, price)
	assert.InDelta(t, 0.8, qty, 1e-9)
}

func TestAddOrder_MarketUnfilledResidualDiscarded(t *testing.T) {
	b := newTestBook()
	_, err := b.AddOrder(&Order{ID: 1, ClientID: "M1", Side: Sell, Kind: Limit, Price: 101, Quantity: 0.1})
	require.NoError(t, err)

	trades, err := b.AddOrder(&Order{ID: 2, ClientID: "C3", Side: Buy, Kind: Market, Quantity: 10})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, 0.1, trades[0].Quantity, 1e-9)

	_, _, ok := b.BestAsk()
	assert.False(t, ok)
	_, _, ok = b.BestBid()
	assert.False(t, ok, "unfilled market residual must not rest")
}

func TestCancelOrder_RoundTrip(t *testing.T) {
	b := newTestBook()
	_, err := b.AddOrder(&Order{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 100, Quantity: 1})
	require.NoError(t, err)

	assert.True(t, b.CancelOrder(1))
	_, _, ok := b.BestBid()
	assert.False(t, ok)

	assert.False(t, b.CancelOrder(1), "cancelling an already-removed id returns false")
	assert.False(t, b.CancelOrder(999), "cancelling an unknown id returns false")
}

func TestAddOrder_PriceTimePriority(t *testing.T) {
	b := newTestBook()
	_, err := b.AddOrder(&Order{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 100, Quantity: 1})
	require.NoError(t, err)
	_, err = b.AddOrder(&Order{ID: 2, ClientID: "C2", Side: Buy, Kind: Limit, Price: 100, Quantity: 1})
	require.NoError(t, err)

	trades, err := b.AddOrder(&Order{ID: 3, ClientID: "C3", Side: Sell, Kind: Limit, Price: 100, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(1), trades[0].MakerOrderID, "the earlier-arrived order at the best price must be the maker")
}

func TestAddOrder_RejectsNegativeQuantity(t *testing.T) {
	b := newTestBook()
	_, err := b.AddOrder(&Order{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 100, Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestAddOrder_ZeroQuantityIsNoOp(t *testing.T) {
	b := newTestBook()
	trades, err := b.AddOrder(&Order{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 100, Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, trades)
	_, _, ok := b.BestBid()
	assert.False(t, ok)
}

func TestAddOrder_NeverCrossed(t *testing.T) {
	b := newTestBook()
	orders := []*Order{
		{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 99, Quantity: 1},
		{ID: 2, ClientID: "C2", Side: Sell, Kind: Limit, Price: 101, Quantity: 1},
		{ID: 3, ClientID: "C3", Side: Buy, Kind: Limit, Price: 100.5, Quantity: 0.3},
	}
	for _, o := range orders {
		_, err := b.AddOrder(o)
		require.NoError(t, err)

		bidPx, _, bidOk := b.BestBid()
		askPx, _, askOk := b.BestAsk()
		if bidOk && askOk {
			assert.Less(t, bidPx, askPx)
		}
	}
}

func TestAddOrder_TickRounding(t *testing.T) {
	b := New("TEST", 0.01)
	_, err := b.AddOrder(&Order{ID: 1, ClientID: "C1", Side: Buy, Kind: Limit, Price: 100.004, Quantity: 1})
	require.NoError(t, err)
	price, _, ok := b.BestBid()
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)
}
