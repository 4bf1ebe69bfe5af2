package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var errTickerNotFound = errors.New("brapi: ticker not found")

// BrapiClient reads quotes from brapi.dev.
type BrapiClient struct {
	baseURL string
	token   string
	cli     *http.Client
	log     logrus.FieldLogger
}

type BrapiOption func(*BrapiClient)

func WithHTTPClient(cli *http.Client) BrapiOption {
	return func(c *BrapiClient) { c.cli = cli }
}

func WithLogger(log logrus.FieldLogger) BrapiOption {
	return func(c *BrapiClient) { c.log = log }
}

func NewBrapiClient(baseURL, token string, opts ...BrapiOption) *BrapiClient {
	c := &BrapiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		cli:     &http.Client{Timeout: 10 * time.Second},
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type brapiResponse struct {
	Results []struct {
		Symbol                     string          `json:"symbol"`
		ShortName                  string          `json:"shortName"`
		LongName                   string          `json:"longName"`
		Currency                   string          `json:"currency"`
		RegularMarketPrice         decimal.Decimal `json:"regularMarketPrice"`
		RegularMarketChangePercent decimal.Decimal `json:"regularMarketChangePercent"`
		RegularMarketTime          time.Time       `json:"regularMarketTime"`
		LogoURL                    string          `json:"logourl"`
	} `json:"results"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Quotes asks for every ticker in one request. When brapi rejects the batch because one of the
// tickers is unknown, each ticker is requested on its own and the unknown ones are skipped.
func (c *BrapiClient) Quotes(ctx context.Context, tickers []string) (map[string]Quote, error) {
	tickers = NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	out, err := c.fetch(ctx, tickers)
	switch {
	case err == nil:
		return out, nil
	case !errors.Is(err, errTickerNotFound):
		return nil, err
	case len(tickers) == 1:
		return map[string]Quote{}, nil
	}

	out = make(map[string]Quote, len(tickers))
	for _, t := range tickers {
		one, err := c.fetch(ctx, []string{t})
		if errors.Is(err, errTickerNotFound) {
			c.log.WithField("ticker", t).Debug("brapi ticker not found")
			continue
		}
		if err != nil {
			return nil, err
		}
		for k, q := range one {
			out[k] = q
		}
	}
	return out, nil
}

func (c *BrapiClient) fetch(ctx context.Context, tickers []string) (map[string]Quote, error) {
	escaped := make([]string, len(tickers))
	for i, t := range tickers {
		escaped[i] = url.PathEscape(t)
	}
	endpoint := fmt.Sprintf("%s/quote/%s", c.baseURL, strings.Join(escaped, ","))
	if c.token != "" {
		endpoint += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build brapi request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errTickerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brapi http %d", resp.StatusCode)
	}

	var raw brapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode brapi response: %w", err)
	}
	if raw.Error {
		return nil, fmt.Errorf("brapi: %s", raw.Message)
	}

	out := make(map[string]Quote, len(raw.Results))
	for _, r := range raw.Results {
		symbol := strings.ToUpper(r.Symbol)
		if symbol == "" || !r.RegularMarketPrice.IsPositive() {
			continue
		}
		name := r.LongName
		if name == "" {
			name = r.ShortName
		}
		asOf := r.RegularMarketTime
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		out[symbol] = Quote{
			Ticker:        symbol,
			Name:          name,
			Currency:      r.Currency,
			Price:         r.RegularMarketPrice,
			ChangePercent: r.RegularMarketChangePercent,
			MarketTime:    asOf,
			LogoURL:       r.LogoURL,
		}
	}
	return out, nil
}

var _ Provider = (*BrapiClient)(nil)
