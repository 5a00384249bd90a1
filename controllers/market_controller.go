package controllers

import (
	"log/slog"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"

	"trend_backend/models"
)

const recentRunsLimit = 10

// GetMarketStatus reports the US session from the provider and the BIST session from the clock
// GET /market_status
func (sc *StockController) GetMarketStatus(c *gin.Context) {
	us, err := sc.market.FetchMarketStatus(c.Request.Context(), "US")
	if err != nil {
		sc.log.Warn("Market status error", slog.Any("error", err))
		us = map[string]interface{}{"status": "unknown"}
	}

	c.JSON(http.StatusOK, gin.H{
		"US":   us,
		"BIST": BISTStatus(sc.now().In(sc.bistLoc)),
	})
}

// BISTStatus reports whether Borsa Istanbul is in session at t.
// Sessions run 10:00-18:00 local time on weekdays.
func BISTStatus(t time.Time) gin.H {
	weekend := t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
	open := !weekend && t.Hour() >= 10 && t.Hour() < 18

	status := "closed"
	if open {
		status = "open"
	}
	return gin.H{
		"exchange": "BIST",
		"status":   status,
		"weekend":  weekend,
	}
}

type runView struct {
	models.RefreshRun
	FailedSymbols []string `json:"failed_symbols"`
}

func newRunView(run models.RefreshRun) runView {
	return runView{RefreshRun: run, FailedSymbols: run.FailedSymbolList()}
}

// GetRefreshStatus returns the latest background refresh runs
// GET /refresh_status
func (sc *StockController) GetRefreshStatus(c *gin.Context) {
	runs, err := sc.store.RecentRuns(c.Request.Context(), recentRunsLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}

	var latest *runView
	if len(views) > 0 {
		latest = &views[0]
	}
	c.JSON(http.StatusOK, gin.H{
		"latest": latest,
		"runs":   views,
	})
}

// Health is the liveness probe
// GET /health
func (sc *StockController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": sc.now().UTC().Format(time.RFC3339),
	})
}

// Ready checks the database is reachable
// GET /ready
func (sc *StockController) Ready(c *gin.Context) {
	if err := sc.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
