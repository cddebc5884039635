// Package cache keeps composed search responses in Redis. Keys are scoped
// by book so a rebuild only flushes the entries that may mention it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/library"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/resilience"
)

const (
	keyPrefix = "search:"
	allBooks  = "_all"
)

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, patterns ...string) (int64, error)
	Ping(ctx context.Context) error
}

// QueryCache stores composed responses. Every Invalidate bumps epoch; a
// response computed under an older epoch is returned to its callers but
// never stored, so a search racing a delete cannot repopulate the cache
// with the deleted book.
type QueryCache struct {
	client  Backend
	cfg     config.RedisConfig
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64

	// mu orders stores against epoch bumps: Invalidate takes it
	// exclusively, so a store that saw the old epoch finishes before the
	// flush runs.
	mu    sync.RWMutex
	epoch uint64
}

func New(client Backend, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get returns the cached response for query scoped to bookID. Any Redis
// failure counts as a miss.
func (c *QueryCache) Get(ctx context.Context, query, bookID string, limit int) (*library.SearchResponse, bool) {
	key := c.buildKey(query, bookID, limit)
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	if data == "" {
		c.recordMiss()
		return nil, false
	}
	var resp library.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "query", query, "book_id", bookID, "key", key)
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, query, bookID string, limit int, resp *library.SearchResponse) {
	key := c.buildKey(query, bookID, limit)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or runs compute once per key,
// however many callers ask for it concurrently. Errors are never cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query, bookID string,
	limit int,
	compute func() (*library.SearchResponse, error),
) (*library.SearchResponse, bool, error) {
	if resp, ok := c.Get(ctx, query, bookID, limit); ok {
		return resp, true, nil
	}
	epoch := c.currentEpoch()
	flight := fmt.Sprintf("%s#%d", c.buildKey(query, bookID, limit), epoch)
	val, err, _ := c.group.Do(flight, func() (interface{}, error) {
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		c.setIfCurrent(ctx, epoch, query, bookID, limit, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*library.SearchResponse), false, nil
}

// Invalidate drops every entry scoped to bookID together with the
// unscoped entries. An empty bookID flushes the whole cache.
func (c *QueryCache) Invalidate(ctx context.Context, bookID string) error {
	patterns := []string{keyPrefix + "*"}
	if bookID != "" {
		patterns = []string{
			keyPrefix + bookID + ":*",
			keyPrefix + allBooks + ":*",
		}
	}
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()

	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.client.FlushByPattern(ctx, patterns...)
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache for %q: %w", bookID, err)
	}
	c.logger.Info("cache invalidate", "book_id", bookID, "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// setIfCurrent stores resp unless an invalidation happened after epoch was
// read.
func (c *QueryCache) setIfCurrent(ctx context.Context, epoch uint64, query, bookID string, limit int, resp *library.SearchResponse) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.epoch != epoch {
		c.logger.Debug("cache store skipped, index changed during search", "query", query, "book_id", bookID)
		return
	}
	c.Set(ctx, query, bookID, limit, resp)
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Ping reports Redis reachability for readiness checks.
func (c *QueryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(query, bookID string, limit int) string {
	scope := bookID
	if scope == "" {
		scope = allBooks
	}
	raw := fmt.Sprintf("%s:limit=%d", normalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, scope, hash[:16])
}

// normalizeQuery reduces query to its parsed form so that equivalent
// spellings share one entry.
func normalizeQuery(query string) string {
	plan, err := parser.Parse(query)
	if err != nil {
		return "raw|" + query
	}
	terms := append([]string(nil), plan.Terms...)
	excludes := append([]string(nil), plan.ExcludeTerms...)
	sort.Strings(terms)
	sort.Strings(excludes)
	parts := []string{plan.Type.String(), strings.Join(terms, ",")}
	if len(excludes) > 0 {
		parts = append(parts, "NOT:"+strings.Join(excludes, ","))
	}
	return strings.Join(parts, "|")
}
