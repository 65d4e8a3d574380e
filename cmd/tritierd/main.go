// Command tritierd is the tritier scheduler process.
// It loads configuration, initialises node identity, and starts the engine
// and its HTTP/WebSocket transport.
//
// Usage:
//
//	tritierd [--config path/to/config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arikfeldman/tritier/internal/config"
	"github.com/arikfeldman/tritier/internal/deadletter"
	"github.com/arikfeldman/tritier/internal/metrics"
	"github.com/arikfeldman/tritier/internal/node"
	transphttp "github.com/arikfeldman/tritier/internal/transport/http"
	"github.com/arikfeldman/tritier/pkg/tritier"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tritierd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── 3. Initialise node identity ──────────────────────────────────────────
	n, err := node.New(cfg.Node.DataDir, cfg.Node.ID)
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	slog.Info("tritierd starting",
		"node_id", n.ID(),
		"host", cfg.Node.Host,
		"port", cfg.Node.Port,
		"data_dir", n.DataDir(),
	)

	// ── 4. Initialise dead-letter journal ────────────────────────────────────
	var dlj *deadletter.Store
	if cfg.DeadLetter.Enabled {
		dlj, err = deadletter.Open(cfg.DeadLetter.Path)
		if err != nil {
			return fmt.Errorf("init dead-letter journal: %w", err)
		}
		defer dlj.Close()
	}

	// ── 5. Initialise metrics registry ───────────────────────────────────────
	metricsReg := &metrics.Registry{}

	// ── 6. Initialise and start the engine ───────────────────────────────────
	engine := tritier.New(
		tritier.WithMetrics(metricsReg),
		tritier.WithDispatchSize(cfg.Engine.DispatchSize),
		tritier.WithGracePeriod(cfg.Engine.GracePeriod()),
	)
	if err := engine.Start(cfg.Engine.Frequency(), cfg.Engine.FastThreshold(), cfg.Engine.SlowThreshold()); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	// ── 7. Drain faulted items into the dead-letter journal ─────────────────
	stopDrain := make(chan struct{})
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopDrain:
				return
			case <-ticker.C:
				if dlj == nil {
					continue
				}
				for _, rec := range engine.DrainExceptions() {
					if err := dlj.Record(rec); err != nil {
						slog.Warn("dead-letter journal write failed", "err", err)
					}
				}
			}
		}
	}()

	// ── 8. Start HTTP / WebSocket transport ──────────────────────────────────
	srv := transphttp.New(engine, string(n.ID()), cfg, metricsReg)
	addr := fmt.Sprintf("%s:%d", cfg.Node.Host, cfg.Node.Port)

	// Serve in a background goroutine so we can handle signals.
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("tritierd ready", "node_id", n.ID(), "addr", addr)
		if err := srv.ListenAndServe(addr); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		} else {
			serveErr <- nil
		}
	}()

	// ── 9. Start dedicated Prometheus metrics listener ───────────────────────
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			slog.Info("metrics server listening", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, metricsReg.Handler()); err != nil {
				slog.Warn("metrics server error", "err", err)
			}
		}()
	}

	// ── 10. Graceful shutdown on SIGINT / SIGTERM ─────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	// Give in-flight requests 5 seconds to complete.
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(stopDrain)
	<-drainDone

	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	engine.Stop()

	slog.Info("tritierd stopped")
	return nil
}
