package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"pockettrader/internal/logging"
	"pockettrader/internal/metrics"
	"pockettrader/internal/venue"
)

func main() {
	exchID := flag.String("exch-id", "EXA", "venue identifier, e.g. EXA")
	symbol := flag.String("symbol", "BTC", "traded symbol")
	basePrice := flag.Float64("base-price", 100.0, "starting mid price for the background flow")
	volatility := flag.Float64("volatility", 0.05, "per-step Gaussian mid-price volatility")
	tickSize := flag.Float64("tick-size", 0.01, "minimum price increment")
	tickHz := flag.Float64("tick-hz", 50.0, "market-data snapshot frequency in Hz")

	orderListenAddr := flag.String("order-listen-addr", "0.0.0.0:9101", "udp address to receive NEW/CXL on")
	feedTargetAddr := flag.String("feed-target-addr", "127.0.0.1:8101", "udp address to publish TICK to")
	fillTargetAddr := flag.String("fill-target-addr", "127.0.0.1:7100", "udp address to publish FILL to")

	orderLatencyMeanUs := flag.Float64("order-latency-us-mean", 0, "mean order-path latency, microseconds")
	orderLatencyStdUs := flag.Float64("order-latency-us-std", 0, "order-path latency std deviation, microseconds")
	feedLatencyMeanUs := flag.Float64("feed-latency-us-mean", 0, "mean feed latency, microseconds")
	feedLatencyStdUs := flag.Float64("feed-latency-us-std", 0, "feed latency std deviation, microseconds")

	seed := flag.Int64("seed", 1, "random flow generator seed")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on, empty disables it")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logging.Setup("venue", *debug)

	sim, err := venue.New(venue.Config{
		ExchID:             *exchID,
		Symbol:             *symbol,
		BasePrice:          *basePrice,
		Volatility:         *volatility,
		TickSize:           *tickSize,
		TickHz:             *tickHz,
		OrderListenAddr:    *orderListenAddr,
		FeedTargetAddr:     *feedTargetAddr,
		FillTargetAddr:     *fillTargetAddr,
		OrderLatencyMeanUs: *orderLatencyMeanUs,
		OrderLatencyStdUs:  *orderLatencyStdUs,
		FeedLatencyMeanUs:  *feedLatencyMeanUs,
		FeedLatencyStdUs:   *feedLatencyStdUs,
		Seed:               *seed,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("venue: failed to start simulator")
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	t, _ := tomb.WithContext(ctx)

	if *metricsAddr != "" {
		t.Go(func() error {
			return metrics.Serve(*metricsAddr)
		})
	}

	t.Go(func() error {
		return sim.Run(t.Dying())
	})

	log.Info().Str("exch_id", *exchID).Str("symbol", *symbol).Msg("venue: running")
	<-ctx.Done()
	t.Kill(nil)
	_ = t.Wait()
}
