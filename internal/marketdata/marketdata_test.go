package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newBrapiServer(t *testing.T, known map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "secret" {
			t.Errorf("token = %q", got)
		}
		tickers := strings.Split(strings.TrimPrefix(r.URL.Path, "/quote/"), ",")
		var results []string
		for _, tk := range tickers {
			price, ok := known[tk]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":true,"message":"Não encontramos a ação"}`)
				return
			}
			results = append(results, fmt.Sprintf(`{"symbol":%q,"shortName":"%s ON","currency":"BRL","regularMarketPrice":%s,"regularMarketChangePercent":1.5,"regularMarketTime":"2026-03-20T17:00:00.000Z"}`, tk, tk, price))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"results":[%s]}`, strings.Join(results, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBrapiClientBatch(t *testing.T) {
	srv := newBrapiServer(t, map[string]string{"PETR4": "38.12", "VALE3": "61.3"})
	cli := NewBrapiClient(srv.URL+"/", "secret")

	quotes, err := cli.Quotes(context.Background(), []string{"vale3", "PETR4", "petr4"})
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes", len(quotes))
	}
	if !quotes["PETR4"].Price.Equal(decimal.RequireFromString("38.12")) {
		t.Fatalf("PETR4 price = %s", quotes["PETR4"].Price)
	}
	if quotes["VALE3"].Name != "VALE3 ON" || quotes["VALE3"].MarketTime.IsZero() {
		t.Fatalf("unexpected quote: %+v", quotes["VALE3"])
	}
}

func TestBrapiClientSkipsUnknownTickers(t *testing.T) {
	srv := newBrapiServer(t, map[string]string{"PETR4": "38.12"})
	cli := NewBrapiClient(srv.URL, "secret")

	quotes, err := cli.Quotes(context.Background(), []string{"PETR4", "XXXX1"})
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if _, ok := quotes["XXXX1"]; ok || len(quotes) != 1 {
		t.Fatalf("unexpected quotes: %+v", quotes)
	}

	quotes, err = cli.Quotes(context.Background(), []string{"XXXX1"})
	if err != nil || len(quotes) != 0 {
		t.Fatalf("single unknown = %+v, %v", quotes, err)
	}
}

func TestBrapiClientRejectsEmpty(t *testing.T) {
	cli := NewBrapiClient("http://127.0.0.1:0", "")
	if _, err := cli.Quotes(context.Background(), []string{" ", ""}); !errors.Is(err, ErrNoTickers) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, Quote{Ticker: "itub4", Price: decimal.NewFromInt(30)}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if q, ok, _ := c.Get(ctx, "ITUB4"); !ok || !q.Price.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("fresh get = %+v, %v", q, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "ITUB4"); ok {
		t.Fatal("expected expired entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not evicted, len = %d", c.Len())
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticker := fmt.Sprintf("T%d", i%4)
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, Quote{Ticker: ticker, Price: decimal.NewFromInt(int64(j))}, time.Minute)
				_, _, _ = c.Get(ctx, ticker)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 4 {
		t.Fatalf("len = %d", c.Len())
	}
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  [][]string
	quotes map[string]Quote
	err    error
}

func (f *fakeProvider) Quotes(_ context.Context, tickers []string) (map[string]Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tickers)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]Quote{}
	for _, t := range tickers {
		if q, ok := f.quotes[t]; ok {
			out[t] = q
		}
	}
	return out, nil
}

func TestCachedQuoterFetchesOnlyMisses(t *testing.T) {
	provider := &fakeProvider{quotes: map[string]Quote{
		"BBAS3": {Ticker: "BBAS3", Price: decimal.NewFromInt(27)},
		"WEGE3": {Ticker: "WEGE3", Price: decimal.NewFromInt(40)},
	}}
	q := NewCachedQuoter(provider, NewMemoryCache(), time.Minute, nil)
	ctx := context.Background()

	if _, err := q.Quotes(ctx, []string{"bbas3"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	quotes, err := q.Quotes(ctx, []string{"BBAS3", "WEGE3"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("quotes = %+v", quotes)
	}
	if len(provider.calls) != 2 || len(provider.calls[1]) != 1 || provider.calls[1][0] != "WEGE3" {
		t.Fatalf("provider calls = %v", provider.calls)
	}
}

func TestCachedQuoterServesCachedSubsetOnProviderError(t *testing.T) {
	cache := NewMemoryCache()
	_ = cache.Set(context.Background(), Quote{Ticker: "BBAS3", Price: decimal.NewFromInt(27)}, time.Minute)
	provider := &fakeProvider{err: errors.New("boom")}
	q := NewCachedQuoter(provider, cache, time.Minute, nil)

	quotes, err := q.Quotes(context.Background(), []string{"BBAS3", "WEGE3"})
	if err != nil || len(quotes) != 1 {
		t.Fatalf("quotes = %+v, %v", quotes, err)
	}

	if _, err := q.Quotes(context.Background(), []string{"WEGE3"}); err == nil {
		t.Fatal("expected provider error with nothing cached")
	}
}

func TestRedisCacheKey(t *testing.T) {
	c := NewRedisCache(nil)
	if got := c.key("petr4"); got != "quote:PETR4" {
		t.Fatalf("key = %s", got)
	}
}
