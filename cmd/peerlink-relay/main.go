package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"peerlink/native/internal/config"
	"peerlink/native/internal/relay"
	"peerlink/native/internal/util"
)

const helpText = `peerlink-relay - Forward signaling messages between peerlink clients

Usage:
  peerlink-relay [options]

Every text frame received on /ws is forwarded to all other connected clients.

Environment Variables:
  PEERLINK_RELAY_ADDR  Listen address (default :8080)
  PEERLINK_DEBUG       Enable debug logging

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	factory := util.NewLoggerFactory(os.Stderr, cfg.Debug)
	log := factory.NewLogger("main")

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rs := relay.NewServer(factory)
	mux := http.NewServeMux()
	mux.Handle("/ws", rs)

	srv := &http.Server{Addr: cfg.RelayAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		rs.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("relay listening on %s/ws", cfg.RelayAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("serve: %v", err)
		os.Exit(1)
	}
	log.Info("done")
}
