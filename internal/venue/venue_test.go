package venue

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pockettrader/internal/book"
)

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	sim, err := New(Config{
		ExchID:            "EXA",
		Symbol:            "BTC",
		BasePrice:         100,
		Volatility:        0,
		TickSize:          0.01,
		TickHz:            50,
		OrderListenAddr:   "127.0.0.1:0",
		FeedTargetAddr:    "127.0.0.1:0",
		FillTargetAddr:    "127.0.0.1:0",
		Seed:              1,
		MetricsRegisterer: prometheus.NewPedanticRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(sim.Close)
	return sim
}

func TestHandleNew_SchedulesOrderOnDelayLine(t *testing.T) {
	sim := newTestSimulator(t)
	sim.handleNew("NEW C1 1 B L 100.000000 1.000000", 1000)
	assert.Equal(t, 1, sim.orderLine.Len())

	released := sim.orderLine.Release(1_000_000_000_000)
	require.Len(t, released, 1)
	assert.Equal(t, uint64(1), released[0].order.ID)
}

func TestHandleNew_MalformedIsDropped(t *testing.T) {
	sim := newTestSimulator(t)
	sim.handleNew("NEW C1 notanumber B L 100 1", 1000)
	assert.Equal(t, 0, sim.orderLine.Len())
}

func TestHandleCancel_AppliesImmediately(t *testing.T) {
	sim := newTestSimulator(t)
	_, err := sim.bk.AddOrder(&book.Order{ID: 1, ClientID: "C1", Side: book.Buy, Kind: book.Limit, Price: 100, Quantity: 1})
	require.NoError(t, err)

	sim.handleCancel("CXL C1 1")
	_, _, ok := sim.bk.BestBid()
	assert.False(t, ok)
}

func TestMaybeSnapshotTick_SynthesizesWhenBookEmpty(t *testing.T) {
	sim := newTestSimulator(t)
	sim.lastTickNs = 0
	sim.maybeSnapshotTick(sim.tickIntervalNs)

	require.Equal(t, 1, sim.tickLine.Len())
	released := sim.tickLine.Release(1_000_000_000_000)
	require.Len(t, released, 1)
	assert.InDelta(t, 0.5, released[0].ask-released[0].bid, 1e-9)
}
