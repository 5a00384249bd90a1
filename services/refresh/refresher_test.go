package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"trend_backend/config"
	"trend_backend/models"
	"trend_backend/services/marketdata"
	"trend_backend/services/store"
)

type mockMarket struct {
	mock.Mock
}

func (m *mockMarket) FetchProfile(ctx context.Context, symbol string) marketdata.Profile {
	args := m.Called(ctx, symbol)
	return args.Get(0).(marketdata.Profile)
}

func (m *mockMarket) FetchPriceHistory(ctx context.Context, symbol string, lookback time.Duration) ([]marketdata.Candle, error) {
	args := m.Called(ctx, symbol, lookback)
	candles, _ := args.Get(0).([]marketdata.Candle)
	return candles, args.Error(1)
}

func (m *mockMarket) FetchIndicators(ctx context.Context, symbol string, lookback time.Duration) (*marketdata.Indicators, error) {
	args := m.Called(ctx, symbol, lookback)
	ind, _ := args.Get(0).(*marketdata.Indicators)
	return ind, args.Error(1)
}

// sleepRecorder captures the delays requested by the code under test
type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return nil
}

func (s *sleepRecorder) durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.calls...)
}

var testNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, symbols ...string) *store.Store {
	t.Helper()
	s, err := store.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "stocks.db"),
	}, logger.Silent, discardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	for _, sym := range symbols {
		_, err := s.InsertSymbol(context.Background(), &models.Symbol{
			Symbol: sym,
			Name:   sym,
			Market: models.InferMarket(sym),
		})
		require.NoError(t, err)
	}
	return s
}

func newTestRefresher(market MarketData, st Store, rec *sleepRecorder) *Refresher {
	cfg := config.Default().Refresh
	r := NewRefresher(market, st, cfg, discardLogger())
	r.sleep = rec.sleep
	r.now = func() time.Time { return testNow }
	return r
}

func candles(closes ...float64) []marketdata.Candle {
	out := make([]marketdata.Candle, 0, len(closes))
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out = append(out, marketdata.Candle{Time: start.AddDate(0, 0, i), Close: decimal.NewFromFloat(c)})
	}
	return out
}

func TestRunPassIsolatesFailingSymbol(t *testing.T) {
	st := newTestStore(t, "AAA", "BBB", "CCC")
	market := &mockMarket{}
	market.On("FetchProfile", mock.Anything, mock.Anything).Return(marketdata.Profile{Name: "Name", Sector: "Tech", Currency: "USD"})
	market.On("FetchPriceHistory", mock.Anything, "AAA", mock.Anything).Return(candles(10, 11), nil)
	market.On("FetchPriceHistory", mock.Anything, "BBB", mock.Anything).Return(nil, nil).Run(func(mock.Arguments) {
		panic("provider exploded")
	})
	market.On("FetchPriceHistory", mock.Anything, "CCC", mock.Anything).Return(candles(20, 21, 22), nil)
	market.On("FetchIndicators", mock.Anything, "AAA", mock.Anything).Return(&marketdata.Indicators{SMA: 1, RSI: 75, MACD: -5}, nil)
	market.On("FetchIndicators", mock.Anything, "BBB", mock.Anything).Return(nil, fmt.Errorf("indicators BBB: %w", marketdata.ErrUnavailable))
	market.On("FetchIndicators", mock.Anything, "CCC", mock.Anything).Return(&marketdata.Indicators{SMA: 1, RSI: 25, MACD: 5}, nil)

	rec := &sleepRecorder{}
	r := newTestRefresher(market, st, rec)

	run, err := r.RunPass(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	aaa, err := st.RecentPrices(ctx, "AAA", 10)
	require.NoError(t, err)
	assert.Len(t, aaa, 2)
	ccc, err := st.RecentPrices(ctx, "CCC", 10)
	require.NoError(t, err)
	assert.Len(t, ccc, 3)
	bbb, err := st.RecentPrices(ctx, "BBB", 10)
	require.NoError(t, err)
	assert.Empty(t, bbb)

	snapA, err := st.GetSnapshot(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, 20, snapA.TrendScore)
	assert.Equal(t, "Strong Downtrend", snapA.Trend)

	snapC, err := st.GetSnapshot(ctx, "CCC")
	require.NoError(t, err)
	assert.Equal(t, 90, snapC.TrendScore)
	assert.Equal(t, "Strong Uptrend", snapC.Trend)

	_, err = st.GetSnapshot(ctx, "BBB")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// one delay per symbol, including the last
	assert.Equal(t, []time.Duration{1200 * time.Millisecond, 1200 * time.Millisecond, 1200 * time.Millisecond}, rec.durations())

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.TotalSymbols)
	assert.Equal(t, 1, run.PriceFailures)
	assert.Equal(t, 1, run.TechnicalFailures)
	assert.Equal(t, 1, run.ProfilesUpdated)
	assert.Equal(t, []string{"BBB"}, run.FailedSymbolList())
	require.NotNil(t, run.FinishedAt)

	runs, err := st.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, "BBB", runs[0].FailedSymbols)
}

func TestRunPassProfileCadence(t *testing.T) {
	symbols := []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6"}
	st := newTestStore(t, symbols...)
	market := &mockMarket{}
	market.On("FetchProfile", mock.Anything, mock.Anything).Return(marketdata.Profile{Name: "Renamed", Sector: "Energy", Currency: "USD"})
	market.On("FetchPriceHistory", mock.Anything, mock.Anything, mock.Anything).Return(nil, marketdata.ErrUnavailable)
	market.On("FetchIndicators", mock.Anything, mock.Anything, mock.Anything).Return(nil, marketdata.ErrUnavailable)

	rec := &sleepRecorder{}
	r := newTestRefresher(market, st, rec)

	run, err := r.RunPass(context.Background())
	require.NoError(t, err)

	market.AssertNumberOfCalls(t, "FetchProfile", 2)
	market.AssertCalled(t, "FetchProfile", mock.Anything, "S0")
	market.AssertCalled(t, "FetchProfile", mock.Anything, "S5")
	market.AssertNotCalled(t, "FetchProfile", mock.Anything, "S1")
	assert.Equal(t, 2, run.ProfilesUpdated)
	assert.Len(t, rec.durations(), len(symbols))

	s0, err := st.GetSymbol(context.Background(), "S0")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", s0.Name)
	assert.Equal(t, "Energy", s0.Sector)

	s1, err := st.GetSymbol(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", s1.Name)

	assert.Equal(t, symbols, run.FailedSymbolList())
}

func TestRunPassLookbacks(t *testing.T) {
	st := newTestStore(t, "AAPL")
	market := &mockMarket{}
	market.On("FetchProfile", mock.Anything, "AAPL").Return(marketdata.FallbackProfile("AAPL"))
	market.On("FetchPriceHistory", mock.Anything, "AAPL", 5*365*24*time.Hour).Return(candles(1), nil)
	market.On("FetchIndicators", mock.Anything, "AAPL", 365*24*time.Hour).Return(&marketdata.Indicators{}, nil)

	r := newTestRefresher(market, st, &sleepRecorder{})
	run, err := r.RunPass(context.Background())
	require.NoError(t, err)
	assert.Empty(t, run.FailedSymbolList())
	market.AssertExpectations(t)
}

func TestSyncPricesIsIdempotent(t *testing.T) {
	st := newTestStore(t, "MSFT")
	market := &mockMarket{}
	market.On("FetchPriceHistory", mock.Anything, "MSFT", mock.Anything).Return(candles(100, 101, 102), nil)

	r := newTestRefresher(market, st, &sleepRecorder{})
	ctx := context.Background()

	n, err := r.SyncPrices(ctx, "MSFT")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = r.SyncPrices(ctx, "MSFT")
	require.NoError(t, err)
	assert.Zero(t, n)

	points, err := st.RecentPrices(ctx, "MSFT", 10)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-05-03", points[0].Date)

	sym, err := st.GetSymbol(ctx, "MSFT")
	require.NoError(t, err)
	assert.True(t, testNow.Equal(sym.LastUpdated))
}

func TestRecomputeTechnicalReplacesSnapshot(t *testing.T) {
	st := newTestStore(t, "NVDA")
	market := &mockMarket{}
	market.On("FetchIndicators", mock.Anything, "NVDA", mock.Anything).Return(&marketdata.Indicators{SMA: 1, RSI: 75, MACD: -5}, nil).Once()
	market.On("FetchIndicators", mock.Anything, "NVDA", mock.Anything).Return(&marketdata.Indicators{SMA: 1, RSI: 25, MACD: 5}, nil).Once()

	r := newTestRefresher(market, st, &sleepRecorder{})
	ctx := context.Background()

	snap, err := r.RecomputeTechnical(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 20, snap.TrendScore)

	snap, err = r.RecomputeTechnical(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 90, snap.TrendScore)

	stored, err := st.GetSnapshot(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 90, stored.TrendScore)
	assert.Equal(t, 25.0, stored.RSI)
}

func TestRefreshSymbolRunsBothSteps(t *testing.T) {
	st := newTestStore(t, "TSLA")
	market := &mockMarket{}
	market.On("FetchPriceHistory", mock.Anything, "TSLA", mock.Anything).Return(nil, marketdata.ErrUnavailable)
	market.On("FetchIndicators", mock.Anything, "TSLA", mock.Anything).Return(&marketdata.Indicators{SMA: 3, RSI: 50, MACD: 1}, nil)

	r := newTestRefresher(market, st, &sleepRecorder{})
	err := r.RefreshSymbol(context.Background(), "TSLA")
	assert.ErrorIs(t, err, marketdata.ErrUnavailable)

	snap, err := st.GetSnapshot(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 70, snap.TrendScore)
}

// listFailingStore fails to list symbols but records runs normally
type listFailingStore struct {
	*store.Store
}

func (s listFailingStore) ListSymbols(context.Context, string) ([]models.Symbol, error) {
	return nil, errors.New("database is locked")
}

func TestRunPassRecordsTopLevelFailure(t *testing.T) {
	st := newTestStore(t)
	r := newTestRefresher(&mockMarket{}, listFailingStore{st}, &sleepRecorder{})

	run, err := r.RunPass(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "database is locked")

	runs, err := st.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
}

// listPanickingStore panics while listing symbols
type listPanickingStore struct {
	*store.Store
}

func (s listPanickingStore) ListSymbols(context.Context, string) ([]models.Symbol, error) {
	panic("nil map")
}

func TestRunPassPanicMarksRunFailed(t *testing.T) {
	st := newTestStore(t)
	r := newTestRefresher(&mockMarket{}, listPanickingStore{st}, &sleepRecorder{})

	run, err := r.RunPass(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map")
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusFailed, run.Status)

	runs, err := st.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	assert.NotNil(t, runs[0].FinishedAt)
}
