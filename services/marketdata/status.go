package marketdata

import (
	"context"
	"fmt"
)

// FetchMarketStatus returns the provider's market status document for an exchange
func (c *Client) FetchMarketStatus(ctx context.Context, exchange string) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := c.get(ctx, c.profileTimeout, "/stock/market-status", map[string]string{"exchange": exchange}, &body); err != nil {
		return nil, fmt.Errorf("market status %s: %w", exchange, err)
	}
	return body, nil
}
