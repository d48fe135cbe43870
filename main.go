package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mervalboard/internal/api"
	"mervalboard/internal/board"
	"mervalboard/internal/config"
	"mervalboard/internal/coordinator"
	"mervalboard/internal/fetcher"
	"mervalboard/internal/instrument"
	"mervalboard/internal/logging"
	"mervalboard/internal/metrics"
	"mervalboard/internal/ratelimit"
	"mervalboard/internal/report"
	"mervalboard/internal/scheduler"
	"mervalboard/internal/yahoo"
)

const (
	shutdownTimeout = 10 * time.Second
	reportBuffer    = 64
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)

	// Cancel on interrupt for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(cfg, logger).run(ctx, cfg.ListenAddr, os.Stdout); err != nil {
		logger.Error("board stopped", "error", err)
		os.Exit(1)
	}
}

// app is the wired quote board.
type app struct {
	board     *board.Board
	coord     *coordinator.Coordinator
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
	handler   http.Handler
	logger    *slog.Logger

	// refresh receives SIGHUP once run is started
	refresh chan os.Signal
}

func newApp(cfg *config.Config, logger *slog.Logger) *app {
	m := metrics.New()
	client := fetcher.NewHTTPClient(cfg.RequestTimeout)

	// Fallback order: chart, then summary, then batch quote
	sources := []fetcher.Source{
		yahoo.NewChartSource(client, cfg.ChartBaseURL, fetcher.Relay(cfg.ChartRelay), logger),
		yahoo.NewSummarySource(client, cfg.SummaryBaseURL, fetcher.Relay(cfg.SummaryRelay), logger),
		yahoo.NewBatchSource(client, cfg.BatchBaseURL, fetcher.Relay(cfg.BatchRelay), logger),
	}
	chain := fetcher.NewChain(sources,
		fetcher.WithTimeout(cfg.RequestTimeout),
		fetcher.WithLimiter(ratelimit.New(cfg.SourceRateLimit)),
		fetcher.WithObserver(m),
		fetcher.WithLogger(logger),
	)

	b := board.New(instrument.Merval())
	coord := coordinator.New(b, chain,
		coordinator.WithDelay(cfg.RequestDelay),
		coordinator.WithRecorder(m),
		coordinator.WithLogger(logger),
	)
	sched := scheduler.New(coord, cfg.RefreshInterval, m, logger)

	return &app{
		board:     b,
		coord:     coord,
		scheduler: sched,
		metrics:   m,
		handler:   api.New(b, sched, m.Handler(), logger).Handler(),
		logger:    logger,
		refresh:   make(chan os.Signal, 1),
	}
}

// run starts the scheduler, the HTTP API when listenAddr is set and the
// reporter writing to out, then blocks until ctx is cancelled or one of
// them fails.
func (a *app) run(ctx context.Context, listenAddr string, out io.Writer) error {
	logger := a.logger

	updates, unsubscribe := a.board.Subscribe(reportBuffer)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return report.Follow(updates, out)
	})

	var server *http.Server
	if listenAddr != "" {
		server = &http.Server{
			Addr:              listenAddr,
			Handler:           a.handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http api listening", "addr", listenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	if err := a.scheduler.Start(gctx); err != nil {
		return err
	}

	// SIGHUP requests a manual refresh
	signal.Notify(a.refresh, syscall.SIGHUP)
	defer signal.Stop(a.refresh)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-a.refresh:
				if err := a.scheduler.Trigger(); err == nil {
					logger.Info("manual refresh requested", "signal", sig.String())
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := a.scheduler.Stop(shutdownCtx)
		a.board.Close()
		if server != nil {
			err = errors.Join(err, server.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}
