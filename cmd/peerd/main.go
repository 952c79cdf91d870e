// Command peerd runs a standalone peer connection manager: it loads a
// YAML configuration, wires the manager, supervisor and metrics, and
// blocks until an interrupt or an unrecoverable manager error.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/haskoin-go/peerd/pkg/config"
	"github.com/haskoin-go/peerd/pkg/manager"
	"github.com/haskoin-go/peerd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var configPathFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	Usage:    "path to the peerd YAML configuration file",
	Required: true,
}

var metricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Usage: "address to serve /metrics on (empty disables the metrics server)",
	Value: ":2112",
}

var bestHeightFlag = &cli.Uint64Flag{
	Name:  "best-height",
	Usage: "best block height to advertise in our Version payload",
	Value: 0,
}

func main() {
	app := &cli.App{
		Name:  "peerd",
		Usage: "run a Bitcoin-family P2P peer connection manager",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the peer manager until interrupted",
				Action: runNode,
				Flags:  []cli.Flag{configPathFlag, metricsAddrFlag, bestHeightFlag},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	mtr := metrics.New(reg)

	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	events := make(chan manager.Event, 64)
	messages := make(chan manager.PeerMessage, 256)
	mgr, err := manager.New(cfg, nil, log, mtr, events, messages)
	if err != nil {
		return cli.Exit(err, 1)
	}

	ctx, cancel := newGraceContext()
	defer cancel()

	go logEvents(log, events)
	go drainMessages(messages)

	mgr.ManagerBest(uint32(c.Uint64("best-height")))

	log.Info("peerd starting", zap.Int("max_peers", cfg.MaxPeers))
	err = mgr.Run(ctx)
	if err != nil && err != context.Canceled {
		return cli.Exit(fmt.Errorf("manager stopped: %w", err), 1)
	}
	return nil
}

func newGraceContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx, cancel
}

func logEvents(log *zap.Logger, events <-chan manager.Event) {
	for e := range events {
		switch ev := e.(type) {
		case manager.PeerConnected:
			log.Info("peer connected", zap.String("addr", ev.Peer.Address.String()))
		case manager.PeerDisconnected:
			log.Info("peer disconnected", zap.String("addr", ev.Peer.Address.String()))
		}
	}
}

func drainMessages(messages <-chan manager.PeerMessage) {
	for range messages {
		// Upstream consumers (block/tx relay, etc.) are out of scope here;
		// peerd only needs to keep the channel drained.
	}
}
