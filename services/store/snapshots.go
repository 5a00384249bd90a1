package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"trend_backend/models"
)

// UpsertSnapshot replaces the technical snapshot of a symbol
func (s *Store) UpsertSnapshot(ctx context.Context, snap *models.TechnicalSnapshot) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).
		Create(snap).Error
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// GetSnapshot returns the snapshot of a tracked symbol or ErrNotFound
func (s *Store) GetSnapshot(ctx context.Context, symbol string) (*models.TechnicalSnapshot, error) {
	var snap models.TechnicalSnapshot
	err := s.db.WithContext(ctx).
		Where("technical_snapshots.symbol = ?", symbol).
		Where(tracked("technical_snapshots")).
		First(&snap).Error
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", symbol, notFound(err))
	}
	return &snap, nil
}

// Snapshots returns the snapshots of all tracked symbols keyed by symbol
func (s *Store) Snapshots(ctx context.Context) (map[string]models.TechnicalSnapshot, error) {
	var snaps []models.TechnicalSnapshot
	if err := s.db.WithContext(ctx).Where(tracked("technical_snapshots")).Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := make(map[string]models.TechnicalSnapshot, len(snaps))
	for _, snap := range snaps {
		out[snap.Symbol] = snap
	}
	return out, nil
}

// PruneOrphanSnapshots deletes snapshots whose symbol is no longer tracked
func (s *Store) PruneOrphanSnapshots(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("NOT " + tracked("technical_snapshots")).
		Delete(&models.TechnicalSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune orphan snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
