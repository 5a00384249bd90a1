package models

import (
	"strings"
	"time"
)

// Refresh run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RefreshRun records one pass of the background refresh job
type RefreshRun struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	StartedAt         time.Time  `gorm:"index" json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	Status            string     `gorm:"size:16" json:"status"`
	TotalSymbols      int        `json:"total_symbols"`
	ProfilesUpdated   int        `json:"profiles_updated"`
	PriceFailures     int        `json:"price_failures"`
	TechnicalFailures int        `json:"technical_failures"`
	FailedSymbols     string     `json:"-"` // comma separated
	Error             string     `json:"error,omitempty"`
}

// FailedSymbolList splits the stored failed symbols
func (r *RefreshRun) FailedSymbolList() []string {
	if r.FailedSymbols == "" {
		return []string{}
	}
	return strings.Split(r.FailedSymbols, ",")
}

// SetFailedSymbols stores the failed symbols
func (r *RefreshRun) SetFailedSymbols(symbols []string) {
	r.FailedSymbols = strings.Join(symbols, ",")
}
