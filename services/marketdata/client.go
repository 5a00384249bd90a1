package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"trend_backend/config"
)

// ErrUnavailable means the provider could not deliver usable data:
// a transport failure, a non-200 response, an unreadable body or an empty series.
var ErrUnavailable = errors.New("market data unavailable")

// Client talks to the Finnhub REST API
type Client struct {
	http           *resty.Client
	apiKey         string
	profileTimeout time.Duration
	dataTimeout    time.Duration
	now            func() time.Time
	log            *slog.Logger
}

// NewClient creates a Finnhub client from config
func NewClient(cfg config.MarketDataConfig, log *slog.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Accept", "application/json")
	if cfg.RetryCount > 0 {
		client.SetRetryCount(cfg.RetryCount)
		client.SetRetryWaitTime(time.Second)
		client.AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r != nil &&
				(r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError)
		})
	}

	return &Client{
		http:           client,
		apiKey:         cfg.APIKey,
		profileTimeout: cfg.ProfileTimeout,
		dataTimeout:    cfg.DataTimeout,
		now:            time.Now,
		log:            log,
	}
}

// get issues a GET against path and decodes a 200 JSON body into out
func (c *Client) get(ctx context.Context, timeout time.Duration, path string, params map[string]string, out interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("token", c.apiKey).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrUnavailable, path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: GET %s: HTTP %d", ErrUnavailable, path, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: GET %s: decode: %v", ErrUnavailable, path, err)
	}
	return nil
}

// window returns the unix from/to bounds covering lookback up to now
func (c *Client) window(lookback time.Duration) (string, string) {
	to := c.now()
	from := to.Add(-lookback)
	return fmt.Sprintf("%d", from.Unix()), fmt.Sprintf("%d", to.Unix())
}
