package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trend_backend/config"
	"trend_backend/models"
	"trend_backend/services/analysis"
	"trend_backend/services/marketdata"
)

// MarketData is the provider side of a refresh
type MarketData interface {
	FetchProfile(ctx context.Context, symbol string) marketdata.Profile
	FetchPriceHistory(ctx context.Context, symbol string, lookback time.Duration) ([]marketdata.Candle, error)
	FetchIndicators(ctx context.Context, symbol string, lookback time.Duration) (*marketdata.Indicators, error)
}

// Store is the persistence side of a refresh
type Store interface {
	ListSymbols(ctx context.Context, market string) ([]models.Symbol, error)
	UpdateProfile(ctx context.Context, symbol, name, sector, currency string) error
	InsertPrices(ctx context.Context, points []models.PricePoint) (int64, error)
	TouchSymbol(ctx context.Context, symbol string, at time.Time) error
	UpsertSnapshot(ctx context.Context, snap *models.TechnicalSnapshot) error
	CreateRun(ctx context.Context, run *models.RefreshRun) error
	SaveRun(ctx context.Context, run *models.RefreshRun) error
}

// Refresher walks the tracked symbols and pulls fresh data for each of them
type Refresher struct {
	market MarketData
	store  Store

	symbolDelay       time.Duration
	profileEvery      int
	priceLookback     time.Duration
	indicatorLookback time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	log   *slog.Logger
}

// NewRefresher creates a refresher using the refresh settings from config
func NewRefresher(market MarketData, store Store, cfg config.RefreshConfig, log *slog.Logger) *Refresher {
	profileEvery := cfg.ProfileEvery
	if profileEvery <= 0 {
		profileEvery = 1
	}
	return &Refresher{
		market:            market,
		store:             store,
		symbolDelay:       cfg.SymbolDelay,
		profileEvery:      profileEvery,
		priceLookback:     cfg.PriceLookback,
		indicatorLookback: cfg.IndicatorLookback,
		sleep:             sleepContext,
		now:               time.Now,
		log:               log,
	}
}

// RunPass refreshes every tracked symbol once, in listing order.
// Failures are confined to the step and symbol they happen in; only a failure
// to list the symbols aborts the pass. The pass is recorded as a RefreshRun.
// A panic outside the per-symbol steps marks the run failed and is returned as an error.
func (r *Refresher) RunPass(ctx context.Context) (result *models.RefreshRun, err error) {
	run := &models.RefreshRun{StartedAt: r.now().UTC(), Status: models.RunStatusRunning}
	if err := r.store.CreateRun(ctx, run); err != nil {
		r.log.Warn("Failed to record refresh run", slog.Any("error", err))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Refresh pass panicked", slog.Any("panic", rec))
			run.Status = models.RunStatusFailed
			run.Error = fmt.Sprintf("panic: %v", rec)
			r.finishRun(ctx, run)
			result, err = run, fmt.Errorf("refresh pass panicked: %v", rec)
		}
	}()

	symbols, err := r.store.ListSymbols(ctx, "all")
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		r.finishRun(ctx, run)
		return run, fmt.Errorf("list symbols: %w", err)
	}

	run.TotalSymbols = len(symbols)
	r.log.Info("Refresh pass started", slog.Int("symbols", len(symbols)))

	var failed []string
	for i, sym := range symbols {
		if !r.refreshOne(ctx, i, sym.Symbol, run) {
			failed = append(failed, sym.Symbol)
		}
		// provider rate limit; applies after every symbol
		_ = r.sleep(ctx, r.symbolDelay)
	}

	run.SetFailedSymbols(failed)
	run.Status = models.RunStatusCompleted
	r.finishRun(ctx, run)

	r.log.Info("Refresh pass completed",
		slog.Int("symbols", run.TotalSymbols),
		slog.Int("profiles_updated", run.ProfilesUpdated),
		slog.Int("price_failures", run.PriceFailures),
		slog.Int("technical_failures", run.TechnicalFailures),
	)
	return run, nil
}

func (r *Refresher) finishRun(ctx context.Context, run *models.RefreshRun) {
	finished := r.now().UTC()
	run.FinishedAt = &finished
	if run.ID == 0 {
		return
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		r.log.Warn("Failed to save refresh run", slog.Uint64("run_id", uint64(run.ID)), slog.Any("error", err))
	}
}

// refreshOne runs the profile, price and technical steps for one symbol.
// It reports whether every step succeeded.
func (r *Refresher) refreshOne(ctx context.Context, index int, symbol string, run *models.RefreshRun) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Refresh panicked", slog.String("symbol", symbol), slog.Any("panic", rec))
			ok = false
		}
	}()

	ok = true
	if index%r.profileEvery == 0 {
		if err := r.step(symbol, "profile", func() error { return r.UpdateProfile(ctx, symbol) }); err != nil {
			ok = false
		} else {
			run.ProfilesUpdated++
		}
	}

	if err := r.step(symbol, "prices", func() error {
		_, err := r.SyncPrices(ctx, symbol)
		return err
	}); err != nil {
		run.PriceFailures++
		ok = false
	}

	if err := r.step(symbol, "technical", func() error {
		_, err := r.RecomputeTechnical(ctx, symbol)
		return err
	}); err != nil {
		run.TechnicalFailures++
		ok = false
	}
	return ok
}

// step runs fn, converting a panic into an error so later steps still run
func (r *Refresher) step(symbol, name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s step panicked: %v", name, rec)
		}
		if err != nil {
			r.log.Warn("Refresh step failed",
				slog.String("symbol", symbol),
				slog.String("step", name),
				slog.Any("error", err),
			)
		}
	}()
	return fn()
}

// UpdateProfile fetches the profile of a symbol and stores it
func (r *Refresher) UpdateProfile(ctx context.Context, symbol string) error {
	p := r.market.FetchProfile(ctx, symbol)
	return r.store.UpdateProfile(ctx, symbol, p.Name, p.Sector, p.Currency)
}

// SyncPrices pulls the price history of a symbol and stores the dates not seen before.
// Returns the number of new price points.
func (r *Refresher) SyncPrices(ctx context.Context, symbol string) (int64, error) {
	candles, err := r.market.FetchPriceHistory(ctx, symbol, r.priceLookback)
	if err != nil {
		return 0, err
	}

	points := make([]models.PricePoint, 0, len(candles))
	for _, c := range candles {
		points = append(points, models.PricePoint{
			Symbol: symbol,
			Date:   c.Time.UTC().Format("2006-01-02"),
			Close:  c.Close,
		})
	}

	inserted, err := r.store.InsertPrices(ctx, points)
	if err != nil {
		return 0, err
	}
	if err := r.store.TouchSymbol(ctx, symbol, r.now().UTC()); err != nil {
		return inserted, err
	}

	r.log.Info("Updated stock data",
		slog.String("symbol", symbol),
		slog.Int("days", len(candles)),
		slog.Int64("new", inserted),
	)
	return inserted, nil
}

// RecomputeTechnical fetches the latest indicators, scores them and replaces the snapshot
func (r *Refresher) RecomputeTechnical(ctx context.Context, symbol string) (*models.TechnicalSnapshot, error) {
	ind, err := r.market.FetchIndicators(ctx, symbol, r.indicatorLookback)
	if err != nil {
		return nil, err
	}

	trend, score := analysis.ScoreTrend(ind.SMA, ind.RSI, ind.MACD)
	snap := &models.TechnicalSnapshot{
		Symbol:      symbol,
		SMA:         ind.SMA,
		RSI:         ind.RSI,
		MACD:        ind.MACD,
		Trend:       trend,
		TrendScore:  score,
		LastUpdated: r.now().UTC(),
	}
	if err := r.store.UpsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	r.log.Info("Updated technical analysis",
		slog.String("symbol", symbol),
		slog.Float64("sma", ind.SMA),
		slog.Float64("rsi", ind.RSI),
		slog.Float64("macd", ind.MACD),
		slog.String("trend", trend),
	)
	return snap, nil
}

// RefreshSymbol syncs prices and recomputes the snapshot of one symbol.
// Both steps run even if the first fails.
func (r *Refresher) RefreshSymbol(ctx context.Context, symbol string) error {
	_, priceErr := r.SyncPrices(ctx, symbol)
	_, techErr := r.RecomputeTechnical(ctx, symbol)
	return errors.Join(priceErr, techErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
