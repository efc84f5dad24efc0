// Command probe is a small developer tool for exercising a running venue
// by hand: it sends an ad-hoc NEW or CXL datagram, then listens for and
// prints TICK/FILL datagrams arriving on a given address.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"pockettrader/internal/wire"
)

func main() {
	venueAddr := flag.String("venue-addr", "127.0.0.1:9101", "venue order-entry udp address")
	listenAddr := flag.String("listen-addr", "", "udp address to listen on for TICK/FILL, empty disables listening")
	action := flag.String("action", "new", "action: 'new' or 'cancel'")
	clientID := flag.String("client-id", "PROBE", "client id to send as")
	orderID := flag.Uint64("order-id", 1, "order id")
	side := flag.String("side", "B", "B or S")
	kind := flag.String("kind", "L", "L or M")
	price := flag.Float64("price", 100.0, "limit price")
	qty := flag.Float64("qty", 1.0, "quantity")
	listenSeconds := flag.Int("listen-seconds", 2, "how long to listen before exiting")
	flag.Parse()

	if *listenAddr != "" {
		go listenAndPrint(*listenAddr, *listenSeconds)
	}

	venueUDP, err := net.ResolveUDPAddr("udp", *venueAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve venue addr:", err)
		os.Exit(1)
	}
	conn, err := net.DialUDP("udp", nil, venueUDP)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial venue:", err)
		os.Exit(1)
	}
	defer conn.Close()

	var msg string
	switch *action {
	case "new":
		no := wire.NewOrder{
			ClientID: *clientID, OrderID: *orderID,
			Side: []byte(*side)[0], Kind: []byte(*kind)[0],
			Price: *price, Qty: *qty,
		}
		msg = no.Serialize()
	case "cancel":
		c := wire.Cancel{ClientID: *clientID, OrderID: *orderID}
		msg = c.Serialize()
	default:
		fmt.Fprintln(os.Stderr, "unknown -action, want 'new' or 'cancel'")
		os.Exit(1)
	}

	if _, err := conn.Write([]byte(msg)); err != nil {
		fmt.Fprintln(os.Stderr, "send:", err)
		os.Exit(1)
	}
	fmt.Println("sent:", msg)

	if *listenAddr != "" {
		time.Sleep(time.Duration(*listenSeconds) * time.Second)
	}
}

func listenAndPrint(addr string, seconds int) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve listen addr:", err)
		return
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		return
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	buf := make([]byte, 2048)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		fmt.Println("recv:", string(buf[:n]))
	}
}
