// Package metrics exposes each process's counters and gauges over a
// pull-based HTTP endpoint, the way the wider reference corpus's trading
// cores wire prometheus/client_golang into a matching loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Venue holds the counters exported by a single venue simulator process.
type Venue struct {
	OrdersProcessed prometheus.Counter
	TradesMatched   prometheus.Counter
	TicksPublished  prometheus.Counter
	CancelsTotal    prometheus.Counter
}

// NewVenue registers a venue's counters under exchID as a constant label,
// against reg. A nil reg defaults to prometheus.DefaultRegisterer; tests
// and multi-instance callers should pass their own registry so repeated
// construction (e.g. one per test) does not collide on descriptor identity.
func NewVenue(exchID string, reg prometheus.Registerer) *Venue {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"exch_id": exchID}
	return &Venue{
		OrdersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "pockettrader_venue_orders_processed_total",
			Help:        "Number of order datagrams released from the order delay line into the book.",
			ConstLabels: labels,
		}),
		TradesMatched: factory.NewCounter(prometheus.CounterOpts{
			Name:        "pockettrader_venue_trades_matched_total",
			Help:        "Number of trades produced by the matching engine.",
			ConstLabels: labels,
		}),
		TicksPublished: factory.NewCounter(prometheus.CounterOpts{
			Name:        "pockettrader_venue_ticks_published_total",
			Help:        "Number of tick datagrams transmitted on the market-data socket.",
			ConstLabels: labels,
		}),
		CancelsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "pockettrader_venue_cancels_total",
			Help:        "Number of CXL datagrams applied to the book.",
			ConstLabels: labels,
		}),
	}
}

// Bridge holds the counters exported by the trade bridge process.
type Bridge struct {
	ArbsCompleted  prometheus.Counter
	RealizedPnL    prometheus.Gauge
	FillsDropped   prometheus.Counter
	OrdersRejected prometheus.Counter
}

// NewBridge registers the bridge's counters against reg. A nil reg
// defaults to prometheus.DefaultRegisterer; see NewVenue.
func NewBridge(reg prometheus.Registerer) *Bridge {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Bridge{
		ArbsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pockettrader_bridge_arbs_completed_total",
			Help: "Number of two-leg arbitrages finalized.",
		}),
		RealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pockettrader_bridge_realized_pnl_total",
			Help: "Cumulative realized P&L across completed arbitrages.",
		}),
		FillsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pockettrader_bridge_fills_dropped_total",
			Help: "Number of bridge order references in FILL datagrams dropped (unknown order or closed arb); fills naming none of the bridge's orders are not counted.",
		}),
		OrdersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "pockettrader_bridge_orders_rejected_total",
			Help: "Number of leg orders that could not be routed (unknown venue or side).",
		}),
	}
}

// Serve starts the /metrics HTTP listener on addr. It runs until the
// process exits or the listener errors; callers typically launch it in its
// own goroutine under the same supervising tomb as the main loop.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
