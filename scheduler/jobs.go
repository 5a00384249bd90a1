package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"trend_backend/config"
)

// Housekeeper is the store surface the maintenance jobs need
type Housekeeper interface {
	PruneOrphanPrices(ctx context.Context) (int64, error)
	PruneOrphanSnapshots(ctx context.Context) (int64, error)
	TrimRuns(ctx context.Context, keep int) (int64, error)
}

// CleanupResult summarises one cleanup run
type CleanupResult struct {
	OrphanPrices    int64
	OrphanSnapshots int64
	TrimmedRuns     int64
}

// Scheduler handles all scheduled maintenance jobs
type Scheduler struct {
	cron     *gocron.Scheduler
	store    Housekeeper
	cronExpr string
	keepRuns int
	log      *slog.Logger
}

// NewScheduler creates a new scheduler instance
func NewScheduler(store Housekeeper, cfg config.HousekeepingConfig, log *slog.Logger) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	return &Scheduler{
		cron:     cron,
		store:    store,
		cronExpr: cfg.Cron,
		keepRuns: cfg.KeepRuns,
		log:      log,
	}
}

// Start registers the jobs and starts the scheduler in the background
func (s *Scheduler) Start() error {
	_, err := s.cron.CronWithSeconds(s.cronExpr).Tag("cleanup").Do(func() {
		if _, err := s.Cleanup(context.Background()); err != nil {
			s.log.Error("Cleanup failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", s.cronExpr, err)
	}

	s.cron.StartAsync()
	s.log.Info("Housekeeping scheduler started", slog.String("cron", s.cronExpr))
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("Housekeeping scheduler stopped")
}

// NextRun returns when the cleanup job fires next
func (s *Scheduler) NextRun() time.Time {
	_, next := s.cron.NextRun()
	return next
}

// Cleanup removes orphaned rows and trims the refresh run history.
// Tracked symbols and their prices are never touched.
func (s *Scheduler) Cleanup(ctx context.Context) (*CleanupResult, error) {
	s.log.Info("Cleaning up old data")

	var (
		res CleanupResult
		err error
	)
	if res.OrphanPrices, err = s.store.PruneOrphanPrices(ctx); err != nil {
		return nil, err
	}
	if res.OrphanSnapshots, err = s.store.PruneOrphanSnapshots(ctx); err != nil {
		return nil, err
	}
	if res.TrimmedRuns, err = s.store.TrimRuns(ctx, s.keepRuns); err != nil {
		return nil, err
	}

	s.log.Info("Cleanup completed",
		slog.Int64("orphan_prices", res.OrphanPrices),
		slog.Int64("orphan_snapshots", res.OrphanSnapshots),
		slog.Int64("trimmed_runs", res.TrimmedRuns),
	)
	return &res, nil
}
