package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"pockettrader/internal/bridge"
	"pockettrader/internal/logging"
	"pockettrader/internal/metrics"
)

func main() {
	clientID := flag.String("client-id", "PT", "client id the bridge uses when sending leg orders")
	tradeListenAddr := flag.String("trade-listen-addr", "0.0.0.0:7000", "udp address to receive TRADE on")
	fillListenAddr := flag.String("fill-listen-addr", "0.0.0.0:7100", "udp address to receive FILL on")
	routesFlag := flag.String("routes", "EXA=127.0.0.1:9101,EXB=127.0.0.1:9102", "comma-separated venue_id=host:port routing table")
	arbLogPath := flag.String("arb-log", "arb_log.csv", "path to the completed-arbitrage CSV log")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on, empty disables it")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logging.Setup("bridge", *debug)

	routes, err := parseRoutes(*routesFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("bridge: invalid -routes")
	}

	b, err := bridge.New(bridge.Config{
		ClientID:        *clientID,
		TradeListenAddr: *tradeListenAddr,
		FillListenAddr:  *fillListenAddr,
		Routes:          routes,
		ArbLogPath:      *arbLogPath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("bridge: failed to start")
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	t, _ := tomb.WithContext(ctx)

	if *metricsAddr != "" {
		t.Go(func() error {
			return metrics.Serve(*metricsAddr)
		})
	}

	t.Go(func() error {
		return b.Run(t.Dying())
	})

	log.Info().Str("client_id", *clientID).Msg("bridge: running")
	<-ctx.Done()
	t.Kill(nil)
	_ = t.Wait()
}

func parseRoutes(spec string) (map[string]bridge.Route, error) {
	routes := make(map[string]bridge.Route)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed route entry %q, want venue_id=host:port", pair)
		}
		routes[strings.ToUpper(parts[0])] = bridge.Route{Addr: parts[1]}
	}
	return routes, nil
}
