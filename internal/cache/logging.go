package cache

import (
	"context"
	"time"

	"github.com/r-ms/detect-spam/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingStore wraps a Store with per-call logging.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore returns a store that logs every Get and Set.
func NewLoggingStore(inner Store, backend string) Store {
	return &LoggingStore{inner: inner, backend: backend}
}

func (c *LoggingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}

	fields := []zap.Field{
		zap.String("cache_backend", c.backend),
		zap.String("hash_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("store_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("store_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := []zap.Field{
		zap.String("cache_backend", c.backend),
		zap.String("hash_key", key),
		zap.Int("value_bytes", len(value)),
		zap.Float64("latency_ms", latencyMs),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("store_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("store_set", fields...)
	}

	return err
}

func (c *LoggingStore) Clear(ctx context.Context) error {
	err := c.inner.Clear(ctx)
	if err != nil {
		logging.L(ctx).Error("store_clear", zap.String("cache_backend", c.backend), zap.Error(err))
	} else {
		logging.L(ctx).Info("store_clear", zap.String("cache_backend", c.backend))
	}
	return err
}

func (c *LoggingStore) Len(ctx context.Context) (int, error) {
	return c.inner.Len(ctx)
}

// Ping forwards to the wrapped store; in-process stores are always reachable.
func (c *LoggingStore) Ping(ctx context.Context) error {
	if p, ok := c.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *LoggingStore) Location() string {
	return c.inner.Location()
}

func (c *LoggingStore) Close() error {
	return c.inner.Close()
}
