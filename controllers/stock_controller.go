package controllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"trend_backend/models"
	"trend_backend/services/marketdata"
	"trend_backend/services/store"
)

// StockStore is the read/write surface the stock endpoints use
type StockStore interface {
	GetSymbol(ctx context.Context, symbol string) (*models.Symbol, error)
	ListSymbols(ctx context.Context, market string) ([]models.Symbol, error)
	InsertSymbol(ctx context.Context, sym *models.Symbol) (bool, error)
	RecentPrices(ctx context.Context, symbol string, n int) ([]models.PricePoint, error)
	GetSnapshot(ctx context.Context, symbol string) (*models.TechnicalSnapshot, error)
	Snapshots(ctx context.Context) (map[string]models.TechnicalSnapshot, error)
	RecentRuns(ctx context.Context, n int) ([]models.RefreshRun, error)
	Ping(ctx context.Context) error
}

// MarketClient is the provider surface the endpoints call directly
type MarketClient interface {
	FetchProfile(ctx context.Context, symbol string) marketdata.Profile
	FetchMarketStatus(ctx context.Context, exchange string) (map[string]interface{}, error)
}

// SymbolRefresher performs on-demand refreshes
type SymbolRefresher interface {
	RefreshSymbol(ctx context.Context, symbol string) error
	RecomputeTechnical(ctx context.Context, symbol string) (*models.TechnicalSnapshot, error)
}

// periodDays maps a chart period to the number of newest price points returned
var periodDays = map[string]int{
	"10Y": 3650,
	"5Y":  1825,
	"1Y":  365,
	"6M":  180,
	"1M":  30,
	"1W":  7,
}

const defaultPeriod = "1Y"

// StockController handles stock-related requests
type StockController struct {
	store     StockStore
	market    MarketClient
	refresher SymbolRefresher
	bistLoc   *time.Location
	now       func() time.Time
	random    func() float64
	log       *slog.Logger
}

// NewStockController creates a new stock controller
func NewStockController(st StockStore, market MarketClient, refresher SymbolRefresher, bistLoc *time.Location, log *slog.Logger) *StockController {
	return &StockController{
		store:     st,
		market:    market,
		refresher: refresher,
		bistLoc:   bistLoc,
		now:       time.Now,
		random:    rand.Float64,
		log:       log,
	}
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
}

// bindSymbol reads the request body and returns the normalised symbol
func bindSymbol(c *gin.Context) (symbolRequest, bool) {
	var req symbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, false
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	return req, req.Symbol != ""
}

// GetStockData returns the newest closes of a symbol for a chart period
// POST /stock_data
func (sc *StockController) GetStockData(c *gin.Context) {
	req, ok := bindSymbol(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol required"})
		return
	}

	days, ok := periodDays[req.Period]
	if !ok {
		days = periodDays[defaultPeriod]
	}

	points, err := sc.store.RecentPrices(c.Request.Context(), req.Symbol, days)
	if err != nil {
		sc.log.Error("Stock data error", slog.String("symbol", req.Symbol), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available"})
		return
	}

	dates := make([]string, 0, len(points))
	prices := make([]float64, 0, len(points))
	for _, p := range points {
		dates = append(dates, p.Date)
		prices = append(prices, p.Close.InexactFloat64())
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": req.Symbol,
		"dates":  dates,
		"prices": prices,
	})
}

// AddStock starts tracking a symbol and refreshes it immediately
// POST /add_stock
func (sc *StockController) AddStock(c *gin.Context) {
	req, ok := bindSymbol(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Stock symbol required"})
		return
	}
	ctx := c.Request.Context()

	profile := sc.market.FetchProfile(ctx, req.Symbol)
	sym := &models.Symbol{
		Symbol:      req.Symbol,
		Name:        profile.Name,
		Market:      models.InferMarket(req.Symbol),
		Sector:      profile.Sector,
		Currency:    profile.Currency,
		LastUpdated: sc.now().UTC(),
	}
	if _, err := sc.store.InsertSymbol(ctx, sym); err != nil {
		sc.log.Error("Add stock error", slog.String("symbol", req.Symbol), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if err := sc.refresher.RefreshSymbol(ctx, req.Symbol); err != nil {
		sc.log.Warn("Initial refresh incomplete", slog.String("symbol", req.Symbol), slog.Any("error", err))
	}

	stored, err := sc.store.GetSymbol(ctx, req.Symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("%s added successfully", stored.Symbol),
		"data": gin.H{
			"symbol":   stored.Symbol,
			"name":     stored.Name,
			"market":   stored.Market,
			"sector":   stored.Sector,
			"currency": stored.Currency,
		},
	})
}

// StockSummary is one row of the dashboard listing
type StockSummary struct {
	Symbol        string        `json:"symbol"`
	Name          string        `json:"name"`
	Market        models.Market `json:"market"`
	Sector        string        `json:"sector"`
	Currency      string        `json:"currency"`
	Price         float64       `json:"price"`
	Change        float64       `json:"change"`
	ChangePercent float64       `json:"change_percent"`
	Trend         string        `json:"trend"`
	TrendScore    int           `json:"trend_score"`
}

// GetStocks lists tracked symbols with price and trend, best score first
// GET /stocks?market=all
func (sc *StockController) GetStocks(c *gin.Context) {
	ctx := c.Request.Context()
	market := c.DefaultQuery("market", "all")

	symbols, err := sc.store.ListSymbols(ctx, market)
	if err != nil {
		sc.log.Error("Get stocks error", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	snapshots, err := sc.store.Snapshots(ctx)
	if err != nil {
		sc.log.Error("Get stocks error", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stocks := make([]StockSummary, 0, len(symbols))
	for _, sym := range symbols {
		points, err := sc.store.RecentPrices(ctx, sym.Symbol, 2)
		if err != nil {
			sc.log.Error("Get stocks error", slog.String("symbol", sym.Symbol), slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		price, change, changePct := priceChange(points)

		row := StockSummary{
			Symbol:        sym.Symbol,
			Name:          sym.Name,
			Market:        sym.Market,
			Sector:        sym.Sector,
			Currency:      sym.Currency,
			Price:         price.InexactFloat64(),
			Change:        change.InexactFloat64(),
			ChangePercent: changePct.InexactFloat64(),
			Trend:         "Unknown",
		}
		if snap, ok := snapshots[sym.Symbol]; ok {
			row.Trend = snap.Trend
			row.TrendScore = snap.TrendScore
		}
		stocks = append(stocks, row)
	}

	sort.SliceStable(stocks, func(i, j int) bool {
		return stocks[i].TrendScore > stocks[j].TrendScore
	})

	c.JSON(http.StatusOK, stocks)
}

// priceChange returns the latest close and its change against the previous close.
// points must be newest first.
func priceChange(points []models.PricePoint) (price, change, changePct decimal.Decimal) {
	if len(points) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	price = points[0].Close
	if len(points) < 2 {
		return price, decimal.Zero, decimal.Zero
	}

	prev := points[1].Close
	change = price.Sub(prev)
	if prev.IsZero() {
		return price, change, decimal.Zero
	}
	return price, change, change.Div(prev).Mul(decimal.NewFromInt(100))
}

// GetTechnicalAnalysis returns the cached snapshot, computing it on a miss.
// A symbol that is not tracked gets 404 instead of a recompute.
// POST /technical_analysis
func (sc *StockController) GetTechnicalAnalysis(c *gin.Context) {
	req, ok := bindSymbol(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol required"})
		return
	}
	ctx := c.Request.Context()

	snap, err := sc.store.GetSnapshot(ctx, req.Symbol)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		sc.log.Error("Technical analysis error", slog.String("symbol", req.Symbol), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if snap == nil {
		if _, err := sc.store.GetSymbol(ctx, req.Symbol); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		snap, err = sc.refresher.RecomputeTechnical(ctx, req.Symbol)
		if err != nil {
			sc.log.Warn("Technical analysis failed", slog.String("symbol", req.Symbol), slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Technical analysis failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":      req.Symbol,
		"sma":         snap.SMA,
		"rsi":         snap.RSI,
		"macd":        snap.MACD,
		"trend":       snap.Trend,
		"trend_score": snap.TrendScore,
	})
}

// Analyze returns the symbol overview with a naive prediction
// POST /analyze
func (sc *StockController) Analyze(c *gin.Context) {
	req, ok := bindSymbol(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol required"})
		return
	}
	ctx := c.Request.Context()

	sym, err := sc.store.GetSymbol(ctx, req.Symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	points, err := sc.store.RecentPrices(ctx, req.Symbol, 2)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	price, change, changePct := priceChange(points)

	trend, score := "Unknown", 50
	snap, err := sc.store.GetSnapshot(ctx, req.Symbol)
	switch {
	case err == nil:
		trend, score = snap.Trend, snap.TrendScore
	case !errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":               sym.Symbol,
		"name":                 sym.Name,
		"market":               sym.Market,
		"sector":               sym.Sector,
		"currency":             sym.Currency,
		"current_price":        price.InexactFloat64(),
		"price_change":         change.InexactFloat64(),
		"price_change_percent": changePct.InexactFloat64(),
		"trend":                trend,
		"trend_score":          score,
		"prediction":           Prediction(price, score).InexactFloat64(),
		"stats": gin.H{
			"volatility":   sc.uniform(0.1, 0.4),
			"sharpe_ratio": sc.uniform(0.5, 2.0),
			"max_drawdown": sc.uniform(-0.5, -0.1),
		},
	})
}

// Prediction nudges the price by up to ±10% depending on the trend score
func Prediction(price decimal.Decimal, score int) decimal.Decimal {
	factor := decimal.NewFromInt(int64(score - 50)).Div(decimal.NewFromInt(500))
	return price.Mul(decimal.NewFromInt(1).Add(factor))
}

func (sc *StockController) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*sc.random()
}
