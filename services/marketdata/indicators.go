package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Indicators holds the latest value of each indicator series
type Indicators struct {
	SMA  float64
	RSI  float64
	MACD float64
}

type indicatorQuery struct {
	name   string
	params map[string]string
	dst    *float64
}

// FetchIndicators queries SMA(20), RSI(14) and MACD concurrently over lookback.
// If any query fails the whole result is unavailable. A query that succeeds
// without data contributes 0.
func (c *Client) FetchIndicators(ctx context.Context, symbol string, lookback time.Duration) (*Indicators, error) {
	from, to := c.window(lookback)
	out := &Indicators{}

	queries := []indicatorQuery{
		{name: "sma", params: map[string]string{"timeperiod": "20"}, dst: &out.SMA},
		{name: "rsi", params: map[string]string{"timeperiod": "14"}, dst: &out.RSI},
		{name: "macd", dst: &out.MACD},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		params := map[string]string{
			"symbol":     symbol,
			"resolution": "D",
			"from":       from,
			"to":         to,
			"indicator":  q.name,
		}
		for k, v := range q.params {
			params[k] = v
		}

		g.Go(func() error {
			var body map[string]json.RawMessage
			if err := c.get(gctx, c.dataTimeout, "/indicator", params, &body); err != nil {
				return fmt.Errorf("%s: %w", q.name, err)
			}
			v, err := lastValue(body, q.name)
			if err != nil {
				return fmt.Errorf("%s: %w", q.name, err)
			}
			*q.dst = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indicators %s: %w", symbol, err)
	}
	return out, nil
}

// lastValue returns the final element of the named series.
// The series is looked up under technicalAnalysis first, then at the top level.
// A body without a status or, when ok, without the series is malformed.
func lastValue(body map[string]json.RawMessage, name string) (float64, error) {
	raw, ok := body["s"]
	if !ok {
		return 0, fmt.Errorf("%w: missing status", ErrUnavailable)
	}
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return 0, fmt.Errorf("%w: decode status: %v", ErrUnavailable, err)
	}
	if status != "ok" {
		return 0, nil
	}

	raw, ok = seriesRaw(body, name)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s series", ErrUnavailable, name)
	}
	var series []float64
	if err := json.Unmarshal(raw, &series); err != nil {
		return 0, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, name, err)
	}
	if len(series) == 0 {
		return 0, nil
	}
	return series[len(series)-1], nil
}

func seriesRaw(body map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if nested, ok := body["technicalAnalysis"]; ok {
		var ta map[string]json.RawMessage
		if err := json.Unmarshal(nested, &ta); err == nil {
			if raw, ok := ta[name]; ok {
				return raw, true
			}
		}
	}
	raw, ok := body[name]
	return raw, ok
}
