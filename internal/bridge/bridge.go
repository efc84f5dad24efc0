// Package bridge implements the trade bridge: a stateful translator
// between a strategy's two-leg arbitrage intents and per-venue orders,
// reconciling asynchronous partial fills back into completed arbitrages
// and reporting realized P&L.
package bridge

import (
	"encoding/csv"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"pockettrader/internal/metrics"
	"pockettrader/internal/wire"
)

// fillEpsilon is the tolerance used when deciding a leg has reached its
// target quantity.
const fillEpsilon = 1e-9

const pollTimeout = 50 * time.Millisecond

// LegState tracks one side of an in-flight arbitrage.
type LegState struct {
	Venue            string
	Side             string // BUY|SELL
	TargetQty        float64
	FilledQty        float64
	WeightedPriceSum float64
}

// AvgPrice is the quantity-weighted average fill price, zero until any
// fill has been recorded.
func (l *LegState) AvgPrice() float64 {
	if l.FilledQty <= 0 {
		return 0
	}
	return l.WeightedPriceSum / l.FilledQty
}

// ArbState is a two-leg arbitrage keyed "A"/"B". Once Closed, no further
// fill may mutate it.
type ArbState struct {
	ArbID  int64
	Legs   map[string]*LegState
	Closed bool
}

// Route is a venue's order-entry endpoint.
type Route struct {
	Addr string // udp host:port
}

// Config is the bridge's full configuration surface.
type Config struct {
	ClientID        string
	TradeListenAddr string
	FillListenAddr  string
	Routes          map[string]Route // exch id (upper-cased) -> route
	ArbLogPath      string

	// MetricsRegisterer is where the bridge's counters are registered. A
	// nil value defaults to prometheus.DefaultRegisterer; tests should
	// supply a fresh registry so repeated construction doesn't collide.
	MetricsRegisterer prometheus.Registerer
}

type orderKey struct {
	venue   string
	orderID uint64
}

type arbRef struct {
	arbID int64
	leg   string
}

// Bridge is the runnable trade-bridge event loop.
type Bridge struct {
	cfg Config

	tradeConn *net.UDPConn
	fillConn  *net.UDPConn
	orderConn *net.UDPConn // unbound, shared send socket for leg orders

	nextArbID   int64
	nextOrderID uint64

	orderToArb map[orderKey]arbRef
	arbs       map[int64]*ArbState

	csvFile *os.File
	csvW    *csv.Writer

	metrics *metrics.Bridge
}

// New binds the bridge's TRADE and FILL listen sockets, creates its shared
// outbound order socket, and opens the arb log CSV (writing a header row
// if the file is new).
func New(cfg Config) (*Bridge, error) {
	tradeAddr, err := net.ResolveUDPAddr("udp", cfg.TradeListenAddr)
	if err != nil {
		return nil, err
	}
	tradeConn, err := net.ListenUDP("udp", tradeAddr)
	if err != nil {
		return nil, err
	}

	fillAddr, err := net.ResolveUDPAddr("udp", cfg.FillListenAddr)
	if err != nil {
		return nil, err
	}
	fillConn, err := net.ListenUDP("udp", fillAddr)
	if err != nil {
		return nil, err
	}

	orderConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}

	needsHeader := true
	if fi, statErr := os.Stat(cfg.ArbLogPath); statErr == nil && fi.Size() > 0 {
		needsHeader = false
	}
	f, err := os.OpenFile(cfg.ArbLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if needsHeader {
		_ = w.Write([]string{"arb_id", "timestamp_iso", "size", "buy_px", "sell_px", "spread_realized", "pnl"})
		w.Flush()
	}

	routes := make(map[string]Route, len(cfg.Routes))
	for venue, route := range cfg.Routes {
		routes[strings.ToUpper(venue)] = route
	}
	cfg.Routes = routes

	return &Bridge{
		cfg:         cfg,
		tradeConn:   tradeConn,
		fillConn:    fillConn,
		orderConn:   orderConn,
		nextArbID:   1,
		nextOrderID: 1,
		orderToArb:  make(map[orderKey]arbRef),
		arbs:        make(map[int64]*ArbState),
		csvFile:     f,
		csvW:        w,
		metrics:     metrics.NewBridge(cfg.MetricsRegisterer),
	}, nil
}

// Close releases the bridge's sockets and arb log file.
func (b *Bridge) Close() {
	b.tradeConn.Close()
	b.fillConn.Close()
	b.orderConn.Close()
	b.csvFile.Close()
}

// Run executes the event loop until dying is closed, polling the trade and
// fill sockets in turn with a bounded timeout each.
func (b *Bridge) Run(dying <-chan struct{}) error {
	tradeBuf := make([]byte, 2048)
	fillBuf := make([]byte, 2048)
	for {
		select {
		case <-dying:
			return nil
		default:
		}

		b.tradeConn.SetReadDeadline(time.Now().Add(pollTimeout))
		if n, _, err := b.tradeConn.ReadFromUDP(tradeBuf); err == nil {
			b.handleTradeMsg(string(tradeBuf[:n]))
		} else if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			log.Error().Err(err).Msg("bridge: trade socket read error")
		}

		b.fillConn.SetReadDeadline(time.Now().Add(pollTimeout))
		if n, _, err := b.fillConn.ReadFromUDP(fillBuf); err == nil {
			b.handleFillMsg(string(fillBuf[:n]))
		} else if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			log.Error().Err(err).Msg("bridge: fill socket read error")
		}
	}
}

func (b *Bridge) handleTradeMsg(msg string) {
	tr, err := wire.ParseTrade(msg)
	if err != nil {
		log.Warn().Err(err).Str("msg", msg).Msg("bridge: dropped malformed TRADE")
		return
	}

	arbID := b.nextArbID
	b.nextArbID++

	arb := &ArbState{
		ArbID: arbID,
		Legs: map[string]*LegState{
			"A": {Venue: tr.LegAExch, Side: tr.LegASide, TargetQty: tr.Size},
			"B": {Venue: tr.LegBExch, Side: tr.LegBSide, TargetQty: tr.Size},
		},
	}
	b.arbs[arbID] = arb

	b.sendLegOrder(arbID, "A", tr.LegAExch, tr.LegASide, tr.LegAPrice, tr.Size)
	b.sendLegOrder(arbID, "B", tr.LegBExch, tr.LegBSide, tr.LegBPrice, tr.Size)
}

func (b *Bridge) sendLegOrder(arbID int64, legKey, venue, side string, price, qty float64) {
	route, ok := b.cfg.Routes[strings.ToUpper(venue)]
	if !ok {
		log.Warn().Str("venue", venue).Msg("bridge: unknown venue, dropping leg")
		b.metrics.OrdersRejected.Inc()
		return
	}

	var sideByte byte
	switch strings.ToUpper(side) {
	case "BUY":
		sideByte = 'B'
	case "SELL":
		sideByte = 'S'
	default:
		log.Warn().Str("side", side).Msg("bridge: invalid side, dropping leg")
		b.metrics.OrdersRejected.Inc()
		return
	}

	addr, err := net.ResolveUDPAddr("udp", route.Addr)
	if err != nil {
		log.Error().Err(err).Str("venue", venue).Msg("bridge: cannot resolve venue route")
		return
	}

	orderID := b.nextOrderID
	b.nextOrderID++

	no := wire.NewOrder{ClientID: b.cfg.ClientID, OrderID: orderID, Side: sideByte, Kind: 'L', Price: price, Qty: qty}
	if _, err := b.orderConn.WriteToUDP([]byte(no.Serialize()), addr); err != nil {
		log.Error().Err(err).Msg("bridge: leg order send failed")
		return
	}

	b.orderToArb[orderKey{venue: strings.ToUpper(venue), orderID: orderID}] = arbRef{arbID: arbID, leg: legKey}
}

func (b *Bridge) handleFillMsg(msg string) {
	f, err := wire.ParseFill(msg)
	if err != nil {
		log.Warn().Err(err).Str("msg", msg).Msg("bridge: dropped malformed FILL")
		return
	}

	var candidates []orderKey
	if f.TakerClientID == b.cfg.ClientID {
		candidates = append(candidates, orderKey{venue: strings.ToUpper(f.ExchID), orderID: f.TakerOrderID})
	}
	if f.MakerClientID == b.cfg.ClientID {
		candidates = append(candidates, orderKey{venue: strings.ToUpper(f.ExchID), orderID: f.MakerOrderID})
	}

	// Both candidates are resolved independently: a fill where our own
	// client id is both taker and maker must credit both legs.
	for _, key := range candidates {
		ref, ok := b.orderToArb[key]
		if !ok {
			log.Warn().Str("venue", key.venue).Uint64("order_id", key.orderID).Msg("bridge: fill for unknown order, dropping")
			b.metrics.FillsDropped.Inc()
			continue
		}
		arb, ok := b.arbs[ref.arbID]
		if !ok || arb.Closed {
			b.metrics.FillsDropped.Inc()
			continue
		}
		leg := arb.Legs[ref.leg]
		leg.FilledQty += f.Qty
		leg.WeightedPriceSum += f.Price * f.Qty
		b.maybeFinalize(arb)
	}
}

// maybeFinalize closes arb and emits its completion record once both legs
// have reached their target quantity. Finalization is one-shot: Closed
// prevents a later, possibly duplicate, fill from reopening the arb.
func (b *Bridge) maybeFinalize(arb *ArbState) {
	legA, legB := arb.Legs["A"], arb.Legs["B"]
	if legA.FilledQty+fillEpsilon < legA.TargetQty || legB.FilledQty+fillEpsilon < legB.TargetQty {
		return
	}

	avgA, avgB := legA.AvgPrice(), legB.AvgPrice()
	var buyPx, sellPx float64
	if strings.ToUpper(legA.Side) == "BUY" {
		buyPx, sellPx = avgA, avgB
	} else {
		buyPx, sellPx = avgB, avgA
	}

	size := math.Min(legA.FilledQty, legB.FilledQty)
	spread := sellPx - buyPx
	pnl := spread * size

	arb.Closed = true
	b.metrics.ArbsCompleted.Inc()
	b.metrics.RealizedPnL.Add(pnl)

	log.Info().
		Int64("arb_id", arb.ArbID).
		Float64("size", size).
		Float64("buy_px", buyPx).
		Float64("sell_px", sellPx).
		Float64("pnl", pnl).
		Msg("bridge: arb finalized")

	b.writeArbLog(arb.ArbID, size, buyPx, sellPx, spread, pnl)
}

func (b *Bridge) writeArbLog(arbID int64, size, buyPx, sellPx, spread, pnl float64) {
	row := []string{
		strconv.FormatInt(arbID, 10),
		time.Now().Format("2006-01-02 15:04:05"),
		strconv.FormatFloat(size, 'f', 6, 64),
		strconv.FormatFloat(buyPx, 'f', 6, 64),
		strconv.FormatFloat(sellPx, 'f', 6, 64),
		strconv.FormatFloat(spread, 'f', 6, 64),
		strconv.FormatFloat(pnl, 'f', 6, 64),
	}
	if err := b.csvW.Write(row); err != nil {
		log.Error().Err(err).Msg("bridge: arb log write failed")
		return
	}
	b.csvW.Flush()
}
