package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mervalboard/internal/board"
	"mervalboard/internal/fetcher"
	"mervalboard/internal/health"
)

// DefaultDelay is the pause after each instrument, keeping the upstream
// request rate under its throttling threshold.
const DefaultDelay = 300 * time.Millisecond

// ErrRunInFlight is returned when a batch run is requested while another one
// is still publishing.
var ErrRunInFlight = errors.New("batch run already in flight")

// Recorder receives the outcome of every completed batch run.
type Recorder interface {
	ObserveBatch(status health.Status, unavailable int, elapsed time.Duration, completed time.Time)
}

// Result summarizes a completed batch run.
type Result struct {
	RunID       string
	Views       []board.View
	Health      health.Status
	Unavailable int
	Completed   time.Time
	Duration    time.Duration
}

// Coordinator drives batch runs over the board's instruments, one
// instrument at a time, publishing the board after each of them.
type Coordinator struct {
	board    *board.Board
	resolver fetcher.Source
	delay    time.Duration
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDelay sets the pause after each instrument.
func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.delay = d }
}

// WithRecorder reports completed runs to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a new Coordinator publishing to b and resolving quotes with resolver
func New(b *board.Board, resolver fetcher.Source, opts ...Option) *Coordinator {
	c := &Coordinator{
		board:    b,
		resolver: resolver,
		delay:    DefaultDelay,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Running reports whether a batch run is in flight.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Run executes one batch run. Instruments are resolved strictly in order;
// every instrument is followed by the configured delay, the last one included.
// A failing instrument never aborts the run. Cancelling ctx stops the run
// between instruments and returns the context error.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunInFlight
	}
	defer c.running.Store(false)

	instruments := c.board.Instruments()
	if len(instruments) == 0 {
		return Result{}, errors.New("no instruments configured")
	}

	runID := uuid.NewString()
	start := c.now()
	logger := c.logger.With("run_id", runID)
	logger.Info("batch run started", "instruments", len(instruments))

	previous := c.board.Snapshot()
	views := make([]board.View, len(instruments))
	for i, inst := range instruments {
		views[i] = board.LoadingView(inst)
	}

	// health stays at the previous run's value until this run completes
	snap := board.Snapshot{
		RunID:       runID,
		Views:       views,
		Health:      previous.Health,
		LastUpdated: previous.LastUpdated,
		Running:     true,
	}
	c.publish(logger, snap)

	for i, inst := range instruments {
		q := c.resolver.Quote(ctx, inst)
		if err := ctx.Err(); err != nil {
			return Result{}, c.abort(logger, snap, i, err)
		}

		views[i] = board.ResolvedView(inst, q)
		if !q.Available() {
			logger.Warn("instrument unavailable", "symbol", inst.Symbol)
		}
		c.publish(logger, snap)

		if err := sleep(ctx, c.delay); err != nil {
			return Result{}, c.abort(logger, snap, i+1, err)
		}
	}

	unavailable := snap.Unavailable()
	status := health.Classify(unavailable, len(instruments))
	completed := c.now()

	snap.Health = status
	snap.LastUpdated = &completed
	snap.Running = false
	c.publish(logger, snap)

	elapsed := completed.Sub(start)
	if c.recorder != nil {
		c.recorder.ObserveBatch(status, unavailable, elapsed, completed)
	}

	logger.Info("batch run completed",
		"health", status,
		"unavailable", unavailable,
		"duration", elapsed)

	out := make([]board.View, len(views))
	copy(out, views)
	return Result{
		RunID:       runID,
		Views:       out,
		Health:      status,
		Unavailable: unavailable,
		Completed:   completed,
		Duration:    elapsed,
	}, nil
}

// abort publishes the partial board with Running cleared. Instruments not
// reached keep their loading placeholder; health and LastUpdated stay at the
// previous run's values.
func (c *Coordinator) abort(logger *slog.Logger, snap board.Snapshot, completed int, err error) error {
	logger.Info("batch run aborted", "completed", completed, "error", err)
	snap.Running = false
	c.publish(logger, snap)
	return err
}

func (c *Coordinator) publish(logger *slog.Logger, snap board.Snapshot) {
	err := c.board.Publish(snap)
	switch {
	case err == nil:
	case errors.Is(err, board.ErrClosed):
		logger.Debug("board closed, update discarded")
	default:
		logger.Error("failed to publish board", "error", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
