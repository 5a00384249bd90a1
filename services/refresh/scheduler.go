package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trend_backend/config"
	"trend_backend/models"
)

// PassRunner executes one refresh pass
type PassRunner interface {
	RunPass(ctx context.Context) (*models.RefreshRun, error)
}

// Scheduler alternates between running a pass and sleeping.
// A successful pass is followed by the regular interval, a failed or
// panicking pass by the shorter retry delay. Cancellation is only
// observed while sleeping; a pass in progress always runs to completion.
type Scheduler struct {
	pass       PassRunner
	interval   time.Duration
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewScheduler creates a scheduler for the given pass runner
func NewScheduler(pass PassRunner, cfg config.RefreshConfig, log *slog.Logger) *Scheduler {
	return &Scheduler{
		pass:       pass,
		interval:   cfg.Interval,
		retryDelay: cfg.RetryDelay,
		sleep:      sleepContext,
		log:        log,
	}
}

// Start launches the scheduler loop. With blockFirst the first pass runs
// before Start returns. The loop exits when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, blockFirst bool) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	var wait time.Duration
	ranFirst := false
	if blockFirst {
		wait = s.runOnce(ctx)
		ranFirst = true
	}

	go func() {
		defer s.stopped()
		if ranFirst {
			if err := s.sleep(ctx, wait); err != nil {
				return
			}
		}
		s.loop(ctx)
	}()

	s.log.Info("Refresh scheduler started",
		slog.Duration("interval", s.interval),
		slog.Duration("retry_delay", s.retryDelay),
	)
}

// Wait blocks until the loop started by Start has exited
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// IsRunning returns whether the scheduler loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) stopped() {
	s.mu.Lock()
	s.running = false
	close(s.done)
	s.mu.Unlock()
	s.log.Info("Refresh scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		wait := s.runOnce(ctx)
		if err := s.sleep(ctx, wait); err != nil {
			return
		}
	}
}

// runOnce runs a single pass and returns how long to sleep afterwards
func (s *Scheduler) runOnce(ctx context.Context) (wait time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("Refresh pass panicked", slog.Any("panic", rec))
			wait = s.retryDelay
		}
	}()

	if _, err := s.pass.RunPass(context.WithoutCancel(ctx)); err != nil {
		s.log.Error("Refresh pass failed", slog.Any("error", err), slog.Duration("retry_in", s.retryDelay))
		return s.retryDelay
	}
	return s.interval
}
