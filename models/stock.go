package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Market is the category a tracked symbol belongs to
type Market string

const (
	MarketUS     Market = "US"
	MarketBIST   Market = "BIST"
	MarketCrypto Market = "Crypto"
)

// cryptoSymbols are the pairs tracked as crypto rather than US equities
var cryptoSymbols = map[string]bool{
	"BTC-USD": true,
	"ETH-USD": true,
}

// InferMarket guesses the market of a symbol from its ticker format
func InferMarket(symbol string) Market {
	switch {
	case strings.HasSuffix(symbol, ".IS"):
		return MarketBIST
	case cryptoSymbols[symbol]:
		return MarketCrypto
	default:
		return MarketUS
	}
}

// Symbol represents a tracked equity or crypto pair
type Symbol struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Symbol      string    `gorm:"uniqueIndex;not null;size:32" json:"symbol"`
	Name        string    `json:"name"`
	Market      Market    `gorm:"index;size:16" json:"market"`
	Sector      string    `json:"sector"`
	Currency    string    `gorm:"size:8" json:"currency"`
	LastUpdated time.Time `json:"last_updated"`
}

// PricePoint is one daily close for a symbol
type PricePoint struct {
	ID     uint            `gorm:"primaryKey" json:"-"`
	Symbol string          `gorm:"uniqueIndex:idx_price_symbol_date;not null;size:32" json:"symbol"`
	Date   string          `gorm:"uniqueIndex:idx_price_symbol_date;not null;size:10" json:"date"` // YYYY-MM-DD
	Close  decimal.Decimal `gorm:"type:decimal(20,6)" json:"close"`
}

// TechnicalSnapshot is the latest indicator reading for a symbol.
// There is at most one row per symbol; a recompute replaces it.
type TechnicalSnapshot struct {
	Symbol      string    `gorm:"primaryKey;size:32" json:"symbol"`
	SMA         float64   `json:"sma"`
	RSI         float64   `json:"rsi"`
	MACD        float64   `json:"macd"`
	Trend       string    `gorm:"size:32" json:"trend"`
	TrendScore  int       `json:"trend_score"`
	LastUpdated time.Time `json:"last_updated"`
}

// MigrateStockModels runs database migrations for the stock tables
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Symbol{},
		&PricePoint{},
		&TechnicalSnapshot{},
		&RefreshRun{},
	)
}
