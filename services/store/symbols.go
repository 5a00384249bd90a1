package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"trend_backend/models"
)

// InsertSymbol adds a symbol if it is not tracked yet. It reports whether a row was created.
func (s *Store) InsertSymbol(ctx context.Context, sym *models.Symbol) (bool, error) {
	if sym.LastUpdated.IsZero() {
		sym.LastUpdated = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "symbol"}}, DoNothing: true}).
		Create(sym)
	if res.Error != nil {
		return false, fmt.Errorf("insert symbol %s: %w", sym.Symbol, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetSymbol returns a tracked symbol or ErrNotFound
func (s *Store) GetSymbol(ctx context.Context, symbol string) (*models.Symbol, error) {
	var sym models.Symbol
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&sym).Error; err != nil {
		return nil, fmt.Errorf("get symbol %s: %w", symbol, notFound(err))
	}
	return &sym, nil
}

// ListSymbols returns tracked symbols in insertion order.
// An empty market or "all" returns every market.
func (s *Store) ListSymbols(ctx context.Context, market string) ([]models.Symbol, error) {
	q := s.db.WithContext(ctx).Order("id")
	if market != "" && market != "all" {
		q = q.Where("market = ?", market)
	}

	var symbols []models.Symbol
	if err := q.Find(&symbols).Error; err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return symbols, nil
}

// UpdateProfile overwrites the descriptive fields of a symbol
func (s *Store) UpdateProfile(ctx context.Context, symbol, name, sector, currency string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Symbol{}).
		Where("symbol = ?", symbol).
		Updates(map[string]interface{}{
			"name":     name,
			"sector":   sector,
			"currency": currency,
		}).Error
	if err != nil {
		return fmt.Errorf("update profile %s: %w", symbol, err)
	}
	return nil
}

// TouchSymbol sets the last-updated timestamp of a symbol
func (s *Store) TouchSymbol(ctx context.Context, symbol string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.Symbol{}).
		Where("symbol = ?", symbol).
		Update("last_updated", at).Error
	if err != nil {
		return fmt.Errorf("touch symbol %s: %w", symbol, err)
	}
	return nil
}
