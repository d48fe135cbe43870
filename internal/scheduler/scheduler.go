package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"mervalboard/internal/coordinator"
)

// DefaultInterval is the time between two scheduled batch runs.
const DefaultInterval = 5 * time.Minute

// Trigger origins, used in logs and metrics.
const (
	TriggerStartup = "startup"
	TriggerTimer   = "timer"
	TriggerManual  = "manual"
)

// ErrRunPending is returned by Trigger when a manual run is already queued.
var ErrRunPending = errors.New("manual run already pending")

// Runner executes a single batch run.
type Runner interface {
	Run(ctx context.Context) (coordinator.Result, error)
	Running() bool
}

// Recorder is told whether each trigger started a run.
type Recorder interface {
	ObserveTrigger(trigger string, started bool)
}

// Scheduler periodically runs the board's batch updater.
type Scheduler struct {
	interval time.Duration
	runner   Runner
	recorder Recorder
	logger   *slog.Logger

	manual chan struct{}

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      conc.WaitGroup
}

// New creates a new Scheduler.
func New(runner Runner, interval time.Duration, recorder Recorder, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		runner:   runner,
		recorder: recorder,
		logger:   logger,
		manual:   make(chan struct{}, 1),
	}
}

// Start begins the scheduling loop. The first run starts immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Go(s.loop)

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels the recurring timer and waits for the loop to exit.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger requests an immediate run. The request is ignored with
// coordinator.ErrRunInFlight while a run is in flight, or with ErrRunPending
// when another manual run is already queued.
func (s *Scheduler) Trigger() error {
	if s.runner.Running() {
		s.skipped(TriggerManual, coordinator.ErrRunInFlight.Error())
		return coordinator.ErrRunInFlight
	}

	select {
	case s.manual <- struct{}{}:
		return nil
	default:
		s.skipped(TriggerManual, ErrRunPending.Error())
		return ErrRunPending
	}
}

// loop is the main scheduling loop.
func (s *Scheduler) loop() {
	s.run(TriggerStartup)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.run(TriggerTimer)
		case <-s.manual:
			s.run(TriggerManual)
		}
	}
}

func (s *Scheduler) run(trigger string) {
	if s.ctx.Err() != nil {
		return
	}

	res, err := s.runner.Run(s.ctx)
	switch {
	case errors.Is(err, coordinator.ErrRunInFlight):
		s.skipped(trigger, coordinator.ErrRunInFlight.Error())
		return
	case err != nil && s.ctx.Err() != nil:
		s.record(trigger, true)
		return
	case err != nil:
		s.record(trigger, true)
		s.logger.Error("batch run failed", "trigger", trigger, "error", err)
		return
	}

	s.record(trigger, true)
	s.logger.Debug("batch run finished",
		"trigger", trigger,
		"run_id", res.RunID,
		"health", res.Health)
}

func (s *Scheduler) skipped(trigger, reason string) {
	s.logger.Info("batch trigger ignored", "trigger", trigger, "reason", reason)
	s.record(trigger, false)
}

func (s *Scheduler) record(trigger string, started bool) {
	if s.recorder != nil {
		s.recorder.ObserveTrigger(trigger, started)
	}
}
