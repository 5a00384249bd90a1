package marketdata

import (
	"context"
	"log/slog"
	"strings"
)

// Profile is the descriptive data of a company or pair
type Profile struct {
	Name     string
	Sector   string
	Currency string
}

type profileResponse struct {
	Name            *string `json:"name"`
	FinnhubIndustry *string `json:"finnhubIndustry"`
	Currency        *string `json:"currency"`
}

// GuessCurrency returns TRY for exchange-suffixed tickers and USD otherwise
func GuessCurrency(symbol string) string {
	if strings.Contains(symbol, ".") {
		return "TRY"
	}
	return "USD"
}

// FallbackProfile is used whenever the provider has no usable profile
func FallbackProfile(symbol string) Profile {
	return Profile{Name: symbol, Sector: "Unknown", Currency: GuessCurrency(symbol)}
}

// FetchProfile never fails: any provider problem yields FallbackProfile
func (c *Client) FetchProfile(ctx context.Context, symbol string) Profile {
	c.log.Info("Fetching profile", slog.String("symbol", symbol))

	var body profileResponse
	if err := c.get(ctx, c.profileTimeout, "/stock/profile2", map[string]string{"symbol": symbol}, &body); err != nil {
		c.log.Warn("Failed to get profile", slog.String("symbol", symbol), slog.Any("error", err))
		return FallbackProfile(symbol)
	}
	if body.Name == nil {
		c.log.Warn("No profile found", slog.String("symbol", symbol))
		return FallbackProfile(symbol)
	}

	p := FallbackProfile(symbol)
	p.Name = *body.Name
	if body.FinnhubIndustry != nil {
		p.Sector = *body.FinnhubIndustry
	}
	if body.Currency != nil {
		p.Currency = *body.Currency
	}
	return p
}
