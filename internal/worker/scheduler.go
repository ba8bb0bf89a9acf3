package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	// Interval between runs (default: 1h)
	Interval time.Duration

	// LastDayOnly restricts generation to the last day of the month, the
	// day the next-month policy is meant to fire.
	LastDayOnly bool
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:    time.Hour,
		LastDayOnly: true,
	}
}

// RunResult summarizes one scheduler pass.
type RunResult struct {
	Backfilled int
	Generated  []core.Transaction
	Target     core.Period
	// GenerationSkipped is set when LastDayOnly kept generation from running.
	GenerationSkipped bool
	Carryover         services.CarryoverResult
	CarryoverPeriod   core.Period
}

// Scheduler runs recurring generation and the monthly carryover on a timer.
// Both operations are idempotent, so overlapping with the cron endpoints is
// safe.
type Scheduler struct {
	generator *services.RecurringGenerator
	carryover *services.CarryoverCalculator
	clock     core.Clock
	config    SchedulerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(generator *services.RecurringGenerator, carryover *services.CarryoverCalculator, clock core.Clock, config SchedulerConfig) *Scheduler {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{
		generator: generator,
		carryover: carryover,
		clock:     clock,
		config:    config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Scheduler started",
		log.FieldComponent, log.ComponentWorker,
		"interval", s.config.Interval,
		"last_day_only", s.config.LastDayOnly,
		"policy", s.generator.Policy().Name())
	return nil
}

// Stop gracefully stops the scheduler and waits for the current pass.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the scheduler loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runAndLog(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled run failed",
			log.FieldComponent, log.ComponentWorker,
			log.FieldError, err)
	}
	slog.InfoContext(ctx, "Scheduled run complete",
		log.FieldComponent, log.ComponentWorker,
		"backfilled", res.Backfilled,
		"generated", len(res.Generated),
		"generation_skipped", res.GenerationSkipped,
		log.FieldPeriod, res.CarryoverPeriod.Key(),
		"carryover_exists", res.Carryover.AlreadyExists,
		"next_check", s.clock.Now().Add(s.config.Interval).Format("15:04:05"))
}

// RunOnce performs one pass: ledger backfill, generation for the policy's
// target period and the carryover for the current month. Failures of one
// step do not prevent the others; all errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	now := s.clock.Now()
	actor := core.SystemActor()
	var res RunResult
	var errs []error

	n, err := s.generator.BackfillGeneratedPeriods(ctx)
	res.Backfilled = n
	if err != nil {
		errs = append(errs, fmt.Errorf("backfill: %w", err))
	}

	res.Target = s.generator.Policy().TargetPeriod(now)
	if s.config.LastDayOnly && !isLastDayOfMonth(now) {
		res.GenerationSkipped = true
	} else {
		created, err := s.generator.GeneratePendingTransactions(ctx, now, actor)
		res.Generated = created
		if err != nil {
			errs = append(errs, fmt.Errorf("generate: %w", err))
		}
	}

	res.CarryoverPeriod = core.PeriodOf(now)
	carry, err := s.carryover.CalculateAndSaveCarryover(ctx, res.CarryoverPeriod, actor)
	res.Carryover = carry
	if err != nil {
		errs = append(errs, fmt.Errorf("carryover: %w", err))
	}

	return res, errors.Join(errs...)
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}
