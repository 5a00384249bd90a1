package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"trend_backend/models"
)

const priceBatchSize = 500

// tracked restricts a query on the given table to rows whose symbol is still tracked
func tracked(table string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM symbols WHERE symbols.symbol = %s.symbol)", table)
}

// InsertPrices stores daily closes, skipping dates that already exist for the symbol.
// Existing rows are never overwritten. Returns the number of new rows.
func (s *Store) InsertPrices(ctx context.Context, points []models.PricePoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
			DoNothing: true,
		}).
		CreateInBatches(points, priceBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("insert prices %s: %w", points[0].Symbol, res.Error)
	}
	return res.RowsAffected, nil
}

// RecentPrices returns up to n price points for a tracked symbol, newest first
func (s *Store) RecentPrices(ctx context.Context, symbol string, n int) ([]models.PricePoint, error) {
	var points []models.PricePoint
	err := s.db.WithContext(ctx).
		Where("price_points.symbol = ?", symbol).
		Where(tracked("price_points")).
		Order("date DESC").
		Limit(n).
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("recent prices %s: %w", symbol, err)
	}
	return points, nil
}

// PruneOrphanPrices deletes price points whose symbol is no longer tracked
func (s *Store) PruneOrphanPrices(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("NOT " + tracked("price_points")).
		Delete(&models.PricePoint{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune orphan prices: %w", res.Error)
	}
	return res.RowsAffected, nil
}
