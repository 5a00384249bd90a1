package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"trend_backend/models"
)

// CreateRun inserts a new refresh run and fills in its ID
func (s *Store) CreateRun(ctx context.Context, run *models.RefreshRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create refresh run: %w", err)
	}
	return nil
}

// SaveRun writes every field of an existing refresh run
func (s *Store) SaveRun(ctx context.Context, run *models.RefreshRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("save refresh run %d: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to n refresh runs, newest first
func (s *Store) RecentRuns(ctx context.Context, n int) ([]models.RefreshRun, error) {
	var runs []models.RefreshRun
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(n).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("recent refresh runs: %w", err)
	}
	return runs, nil
}

// TrimRuns keeps the newest keep refresh runs and deletes the rest
func (s *Store) TrimRuns(ctx context.Context, keep int) (int64, error) {
	var cutoff models.RefreshRun
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Offset(keep).
		Limit(1).
		Take(&cutoff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find refresh run cutoff: %w", err)
	}

	res := s.db.WithContext(ctx).Where("id <= ?", cutoff.ID).Delete(&models.RefreshRun{})
	if res.Error != nil {
		return 0, fmt.Errorf("trim refresh runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
