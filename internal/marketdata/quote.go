package marketdata

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoTickers = errors.New("at least one ticker is required")

// Quote is the latest market price of a ticker.
type Quote struct {
	Ticker        string          `json:"ticker"`
	Name          string          `json:"name"`
	Currency      string          `json:"currency"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	MarketTime    time.Time       `json:"market_time"`
	LogoURL       string          `json:"logo_url,omitempty"`
}

// Provider fetches quotes for a batch of tickers. Unknown tickers are omitted from the result.
type Provider interface {
	Quotes(ctx context.Context, tickers []string) (map[string]Quote, error)
}

// NormalizeTickers uppercases, trims and deduplicates tickers, keeping them sorted.
func NormalizeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Prices flattens quotes into ticker → price.
func Prices(quotes map[string]Quote) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(quotes))
	for t, q := range quotes {
		out[t] = q.Price
	}
	return out
}
