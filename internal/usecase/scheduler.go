package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"StoryStream/internal/domain"
	"StoryStream/internal/logging"
	"StoryStream/internal/metrics"
	"StoryStream/internal/ports"
)

// State is the scheduler's position in its Idle/Running/Cooldown cycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Runner executes one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (domain.RunResult, error)
}

// SchedulerDeps wires the timer driver and the pipeline.
type SchedulerDeps struct {
	Driver   ports.Ticker
	Pipeline Runner
	Clock    clock.Clock
	Cooldown time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Scheduler serialises timer ticks and on-demand triggers so at most one run
// executes at a time. Work arriving while busy is dropped, not queued.
type Scheduler struct {
	driver   ports.Ticker
	pipeline Runner
	clock    clock.Clock
	cooldown time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu            sync.Mutex
	state         State
	cooldownUntil time.Time
}

// NewScheduler returns the single-flight coordinator.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scheduler{
		driver:   deps.Driver,
		pipeline: deps.Pipeline,
		clock:    clk,
		cooldown: deps.Cooldown,
		logger:   logging.OrDiscard(deps.Logger),
		metrics:  deps.Metrics,
	}
}

// Start registers the pipeline with the timer driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(at time.Time) {
		result, err := s.run(ctx)
		switch {
		case errors.Is(err, domain.ErrRunInProgress), errors.Is(err, domain.ErrCoolingDown):
			s.logger.Debug("tick dropped", "at", at, "reason", err)
		case err != nil:
			s.logger.Error("scheduled run failed", "at", at, "error", err)
		default:
			s.logger.Debug("scheduled run done", "at", at, "inserted", result.Inserted)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop tears down the timer driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// Trigger runs the pipeline now if the scheduler is idle. The run is detached
// from ctx cancellation so a caller hanging up does not abort it.
func (s *Scheduler) Trigger(ctx context.Context) (domain.RunResult, error) {
	return s.run(context.WithoutCancel(ctx))
}

// State reports the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireCooldownLocked()
	return s.state
}

func (s *Scheduler) run(ctx context.Context) (domain.RunResult, error) {
	if err := s.acquire(); err != nil {
		s.metrics.RunDropped()
		return domain.RunResult{}, err
	}
	defer s.release()

	return s.pipeline.Run(ctx)
}

func (s *Scheduler) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireCooldownLocked()
	switch s.state {
	case StateRunning:
		return domain.ErrRunInProgress
	case StateCooldown:
		return domain.ErrCoolingDown
	}
	s.state = StateRunning
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cooldown > 0 {
		s.state = StateCooldown
		s.cooldownUntil = s.clock.Now().Add(s.cooldown)
		return
	}
	s.state = StateIdle
}

func (s *Scheduler) expireCooldownLocked() {
	if s.state == StateCooldown && !s.clock.Now().Before(s.cooldownUntil) {
		s.state = StateIdle
	}
}
