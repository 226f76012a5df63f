package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/r-ms/detect-spam/internal/metrics"
	"github.com/r-ms/detect-spam/internal/verdict"
	"github.com/r-ms/detect-spam/pkg/logging/logging"
)

// Stats is a snapshot of the result cache.
type Stats struct {
	Size      int    `json:"size"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Directory string `json:"directory"`
	Backend   string `json:"-"`
}

type ResultCacheOptions struct {
	// Backend names the store for stats and logs.
	Backend string
	// ResetStatsOnClear zeroes hits and misses when Clear succeeds.
	ResetStatsOnClear bool
}

// ResultCache maps text fingerprints to verdicts on top of a Store.
//
// It is fail-open: a storage error on read is a miss and a storage error
// on write is dropped. Neither reaches the caller.
type ResultCache struct {
	store  Store
	opts   ResultCacheOptions
	hits   atomic.Int64
	misses atomic.Int64
}

func NewResultCache(store Store, opts ResultCacheOptions) *ResultCache {
	if store == nil {
		store = NewNopStore(BackendDisabled)
	}
	return &ResultCache{store: store, opts: opts}
}

// Get looks up key and counts the outcome as a hit or a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (verdict.Result, bool) {
	payload, ok, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		logging.L(ctx).Warn("cache read failed, treating as miss",
			zap.String("hash_key", key),
			zap.Error(err),
		)
		ok = false
	}

	var res verdict.Result
	if ok {
		if err := json.Unmarshal(payload, &res); err != nil {
			metrics.CacheErrorsTotal.WithLabelValues("decode").Inc()
			logging.L(ctx).Warn("cache entry undecodable, treating as miss",
				zap.String("hash_key", key),
				zap.Error(err),
			)
			ok = false
		}
	}

	if !ok {
		c.misses.Add(1)
		metrics.CacheMissesTotal.Inc()
		return verdict.Result{}, false
	}

	c.hits.Add(1)
	metrics.CacheHitsTotal.Inc()
	return res, true
}

// Put stores res under key, overwriting any previous entry.
func (c *ResultCache) Put(ctx context.Context, key string, res verdict.Result) {
	payload, err := json.Marshal(res)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("encode").Inc()
		logging.L(ctx).Error("cache entry encode failed", zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, key, payload); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		logging.L(ctx).Warn("cache write failed, result not cached",
			zap.String("hash_key", key),
			zap.Error(err),
		)
	}
}

// Clear removes every entry and returns the resulting size.
func (c *ResultCache) Clear(ctx context.Context) (int, error) {
	if err := c.store.Clear(ctx); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("clear").Inc()
		return c.size(ctx), err
	}
	if c.opts.ResetStatsOnClear {
		c.hits.Store(0)
		c.misses.Store(0)
	}
	return c.size(ctx), nil
}

func (c *ResultCache) Stats(ctx context.Context) Stats {
	return Stats{
		Size:      c.size(ctx),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Directory: c.store.Location(),
		Backend:   c.opts.Backend,
	}
}

// InMemory reports whether entries live only inside this process.
func (c *ResultCache) InMemory() bool {
	return c.opts.Backend == BackendMemory
}

// Ping reports whether the underlying store is reachable. Stores that
// live in the process always are.
func (c *ResultCache) Ping(ctx context.Context) error {
	if p, ok := c.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *ResultCache) Close() error {
	return c.store.Close()
}

func (c *ResultCache) size(ctx context.Context) int {
	n, err := c.store.Len(ctx)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("len").Inc()
		logging.L(ctx).Warn("cache size unavailable", zap.Error(err))
		return 0
	}
	return n
}
