package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one daily close
type Candle struct {
	Time  time.Time
	Close decimal.Decimal
}

type candleResponse struct {
	Status string    `json:"s"`
	Close  []float64 `json:"c"`
	Time   []int64   `json:"t"`
}

// FetchPriceHistory returns daily closes covering lookback up to now, oldest first
func (c *Client) FetchPriceHistory(ctx context.Context, symbol string, lookback time.Duration) ([]Candle, error) {
	from, to := c.window(lookback)

	var body candleResponse
	err := c.get(ctx, c.dataTimeout, "/stock/candle", map[string]string{
		"symbol":     symbol,
		"resolution": "D",
		"from":       from,
		"to":         to,
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("price history %s: %w", symbol, err)
	}

	if body.Status != "ok" {
		return nil, fmt.Errorf("price history %s: %w: status %q", symbol, ErrUnavailable, body.Status)
	}
	n := min(len(body.Close), len(body.Time))
	if n == 0 {
		return nil, fmt.Errorf("price history %s: %w: empty series", symbol, ErrUnavailable)
	}

	candles := make([]Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, Candle{
			Time:  time.Unix(body.Time[i], 0).UTC(),
			Close: decimal.NewFromFloat(body.Close[i]),
		})
	}
	return candles, nil
}
