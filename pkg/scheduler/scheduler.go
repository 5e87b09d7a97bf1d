// Package scheduler runs periodic unscoped order pulls so new cart orders
// reach the CRM without manual API calls.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/result"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/transfer"
)

var (
	// ErrSchedulerStopped is returned when the scheduler is stopped
	ErrSchedulerStopped = errors.New("scheduler stopped")

	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

// DefaultPollInterval is the default interval between pull cycles
const DefaultPollInterval = 3 * time.Hour

// Runner starts an order pull. Satisfied by *transfer.Coordinator.
type Runner interface {
	Transfer(ctx context.Context, req transfer.Request) result.Result[transfer.Outcome]
}

// Config holds configuration for the scheduler
type Config struct {
	// PollInterval is how often to run an unscoped pull
	PollInterval time.Duration

	// Enqueue routes pulled orders through the job queue instead of
	// syncing them inline
	Enqueue bool
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		Enqueue:      true,
	}
}

// Scheduler triggers unscoped order pulls on an interval
type Scheduler struct {
	runner Runner
	config Config
	logger ectologger.Logger

	// Coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(runner Runner, config Config, logger ectologger.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	return &Scheduler{
		runner:   runner,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "Scheduler.Start")
	defer span.End()

	s.logger.WithContext(ctx).Infof("Starting scheduler: poll_interval=%s enqueue=%t",
		s.config.PollInterval, s.config.Enqueue)

	// Start the polling loop
	go s.pollLoop(ctx)

	s.logger.WithContext(ctx).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")

	close(s.stopCh)

	// Wait for graceful shutdown with timeout
	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// pollLoop continuously runs pull cycles
func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.runCycle(ctx)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Scheduler poll loop stopping")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle runs a single unscoped pull
func (s *Scheduler) runCycle(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.runCycle")
	defer span.End()

	start := time.Now()
	s.logger.WithContext(ctx).Debug("Running scheduled order pull")

	res := s.runner.Transfer(ctx, transfer.Request{Enqueue: s.config.Enqueue})
	duration := time.Since(start)

	if !res.OK {
		metrics.SchedulerCyclesTotal.WithLabelValues("failure").Inc()
		s.logger.WithContext(ctx).Warnf("Scheduled pull failed after %s: %s", duration, res.Message)
		return
	}

	metrics.SchedulerCyclesTotal.WithLabelValues("success").Inc()
	s.logger.WithContext(ctx).Infof("Scheduled pull completed: orders=%d window=%s..%s duration=%s",
		res.Value.Orders, res.Value.Start, res.Value.End, duration)
}
