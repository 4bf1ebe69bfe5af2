package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// QuoteCache stores quotes for a limited time.
type QuoteCache interface {
	Get(ctx context.Context, ticker string) (Quote, bool, error)
	Set(ctx context.Context, q Quote, ttl time.Duration) error
}

type cachedQuote struct {
	quote   Quote
	expires time.Time
}

// MemoryCache is a process-local QuoteCache safe for concurrent use.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cachedQuote
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]cachedQuote),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, ticker string) (Quote, bool, error) {
	ticker = strings.ToUpper(ticker)
	c.mu.RLock()
	item, ok := c.items[ticker]
	c.mu.RUnlock()
	if !ok {
		return Quote{}, false, nil
	}
	if !c.now().Before(item.expires) {
		c.mu.Lock()
		if cur, ok := c.items[ticker]; ok && cur.expires.Equal(item.expires) {
			delete(c.items, ticker)
		}
		c.mu.Unlock()
		return Quote{}, false, nil
	}
	return item.quote, true, nil
}

func (c *MemoryCache) Set(_ context.Context, q Quote, ttl time.Duration) error {
	c.mu.Lock()
	c.items[strings.ToUpper(q.Ticker)] = cachedQuote{quote: q, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// RedisCache shares quotes between server instances.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "quote:"}
}

func (c *RedisCache) key(ticker string) string {
	return c.prefix + strings.ToUpper(ticker)
}

func (c *RedisCache) Get(ctx context.Context, ticker string) (Quote, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(ticker)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, fmt.Errorf("redis get quote %s: %w", ticker, err)
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, false, fmt.Errorf("decode cached quote %s: %w", ticker, err)
	}
	return q, true, nil
}

func (c *RedisCache) Set(ctx context.Context, q Quote, ttl time.Duration) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", q.Ticker, err)
	}
	if err := c.rdb.Set(ctx, c.key(q.Ticker), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set quote %s: %w", q.Ticker, err)
	}
	return nil
}

var (
	_ QuoteCache = (*MemoryCache)(nil)
	_ QuoteCache = (*RedisCache)(nil)
)
