package marketdata

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend_backend/config"
)

var fixedNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.MarketDataConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		ProfileTimeout: 2 * time.Second,
		DataTimeout:    2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return fixedNow }
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestFetchProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/profile2", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		writeJSON(w, http.StatusOK, `{"name":"Apple Inc","finnhubIndustry":"Technology","currency":"USD"}`)
	})

	p := c.FetchProfile(context.Background(), "AAPL")
	assert.Equal(t, Profile{Name: "Apple Inc", Sector: "Technology", Currency: "USD"}, p)
}

func TestFetchProfilePartialFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"name":"Aselsan"}`)
	})

	p := c.FetchProfile(context.Background(), "ASELS.IS")
	assert.Equal(t, Profile{Name: "Aselsan", Sector: "Unknown", Currency: "TRY"}, p)
}

func TestFetchProfileFallback(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		status int
		body   string
		want   Profile
	}{
		{"http error", "THYAO.IS", http.StatusInternalServerError, `{}`, Profile{"THYAO.IS", "Unknown", "TRY"}},
		{"empty object", "MSFT", http.StatusOK, `{}`, Profile{"MSFT", "Unknown", "USD"}},
		{"bad json", "MSFT", http.StatusOK, `not json`, Profile{"MSFT", "Unknown", "USD"}},
		{"forbidden", "BTC-USD", http.StatusForbidden, `{"error":"no access"}`, Profile{"BTC-USD", "Unknown", "USD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			assert.Equal(t, tt.want, c.FetchProfile(context.Background(), tt.symbol))
		})
	}
}

func TestFetchProfileTransportFailure(t *testing.T) {
	c := NewClient(config.MarketDataConfig{
		BaseURL:        "http://127.0.0.1:1",
		ProfileTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, FallbackProfile("GARAN.IS"), c.FetchProfile(context.Background(), "GARAN.IS"))
}

func TestFetchPriceHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "D", q.Get("resolution"))
		assert.Equal(t, "1717416000", q.Get("to"))
		assert.Equal(t, "1717329600", q.Get("from"))
		writeJSON(w, http.StatusOK, `{"s":"ok","c":[101.5,102.25],"t":[1717113600,1717372800]}`)
	})

	candles, err := c.FetchPriceHistory(context.Background(), "AAPL", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "2024-05-31", candles[0].Time.Format("2006-01-02"))
	assert.Equal(t, "2024-06-03", candles[1].Time.Format("2006-01-02"))
	assert.Equal(t, "101.5", candles[0].Close.String())
	assert.Equal(t, "102.25", candles[1].Close.String())
}

func TestFetchPriceHistoryUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non 200", http.StatusTooManyRequests, `{"error":"limit"}`},
		{"no data", http.StatusOK, `{"s":"no_data"}`},
		{"empty series", http.StatusOK, `{"s":"ok","c":[],"t":[]}`},
		{"undecodable", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.FetchPriceHistory(context.Background(), "AAPL", time.Hour)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestFetchIndicators(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/indicator", r.URL.Path)
		switch q.Get("indicator") {
		case "sma":
			assert.Equal(t, "20", q.Get("timeperiod"))
			writeJSON(w, http.StatusOK, `{"s":"ok","technicalAnalysis":{"sma":[10,11,12.5]}}`)
		case "rsi":
			assert.Equal(t, "14", q.Get("timeperiod"))
			writeJSON(w, http.StatusOK, `{"s":"ok","rsi":[40,55.5]}`)
		case "macd":
			assert.Empty(t, q.Get("timeperiod"))
			writeJSON(w, http.StatusOK, `{"s":"ok","macd":[-1,-0.75],"macdSignal":[0.1]}`)
		default:
			t.Errorf("unexpected indicator %q", q.Get("indicator"))
		}
	})

	ind, err := c.FetchIndicators(context.Background(), "AAPL", 365*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, &Indicators{SMA: 12.5, RSI: 55.5, MACD: -0.75}, ind)
}

func TestFetchIndicatorsEmptySeriesYieldZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("indicator") {
		case "sma":
			writeJSON(w, http.StatusOK, `{"s":"no_data"}`)
		case "rsi":
			writeJSON(w, http.StatusOK, `{"s":"ok","technicalAnalysis":{"rsi":[]}}`)
		default:
			writeJSON(w, http.StatusOK, `{"s":"ok","macd":[2]}`)
		}
	})

	ind, err := c.FetchIndicators(context.Background(), "AAPL", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, &Indicators{SMA: 0, RSI: 0, MACD: 2}, ind)
}

func TestFetchIndicatorsMalformedBodyIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing status", `{"error":"unexpected shape"}`},
		{"empty object", `{}`},
		{"ok without series", `{"s":"ok","technicalAnalysis":{"other":[1]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			ind, err := c.FetchIndicators(context.Background(), "AAPL", time.Hour)
			assert.Nil(t, ind)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestFetchIndicatorsOneFailureDiscardsAll(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("indicator") == "rsi" {
			writeJSON(w, http.StatusInternalServerError, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"s":"ok","sma":[1],"macd":[1]}`)
	})

	ind, err := c.FetchIndicators(context.Background(), "AAPL", time.Hour)
	assert.Nil(t, ind)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestFetchMarketStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/market-status", r.URL.Path)
		assert.Equal(t, "US", r.URL.Query().Get("exchange"))
		writeJSON(w, http.StatusOK, `{"exchange":"US","isOpen":true,"session":"regular"}`)
	})

	status, err := c.FetchMarketStatus(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "US", status["exchange"])
	assert.Equal(t, true, status["isOpen"])
}

func TestFetchMarketStatusFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{}`)
	})

	_, err := c.FetchMarketStatus(context.Background(), "US")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRetryCountRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"exchange":"US"}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.MarketDataConfig{
		BaseURL:        srv.URL,
		ProfileTimeout: 5 * time.Second,
		RetryCount:     1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	status, err := c.FetchMarketStatus(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "US", status["exchange"])
	assert.EqualValues(t, 2, calls.Load())
}
