package marketdata

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// CachedQuoter answers from the cache and asks the provider only for misses.
// A failing cache is treated as empty.
type CachedQuoter struct {
	provider Provider
	cache    QuoteCache
	ttl      time.Duration
	log      logrus.FieldLogger
}

func NewCachedQuoter(provider Provider, cache QuoteCache, ttl time.Duration, log logrus.FieldLogger) *CachedQuoter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedQuoter{provider: provider, cache: cache, ttl: ttl, log: log}
}

func (q *CachedQuoter) Quotes(ctx context.Context, tickers []string) (map[string]Quote, error) {
	tickers = NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	out := make(map[string]Quote, len(tickers))
	var misses []string
	for _, t := range tickers {
		cached, ok, err := q.cache.Get(ctx, t)
		if err != nil {
			q.log.WithError(err).WithField("ticker", t).Warn("quote cache read failed")
		}
		if ok {
			out[t] = cached
			continue
		}
		misses = append(misses, t)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := q.provider.Quotes(ctx, misses)
	if err != nil {
		if len(out) > 0 {
			q.log.WithError(err).Warn("quote provider failed, serving cached subset")
			return out, nil
		}
		return nil, err
	}
	for t, quote := range fetched {
		out[t] = quote
		if err := q.cache.Set(ctx, quote, q.ttl); err != nil {
			q.log.WithError(err).WithField("ticker", t).Warn("quote cache write failed")
		}
	}
	return out, nil
}

var _ Provider = (*CachedQuoter)(nil)
