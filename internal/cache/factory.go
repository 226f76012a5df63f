package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"

	// BackendDisabled and BackendNone name the always-miss stores used when
	// caching is switched off or the configured backend could not be opened.
	BackendDisabled = "disabled"
	BackendNone     = "none"
)

type Config struct {
	Enabled    bool
	Backend    string
	TTL        time.Duration
	MaxEntries int
	Dir        string
	RedisAddr  string
	Prefix     string
	MySQLDSN   string
}

// NewStore opens the configured backend. Errors are returned as-is; callers
// decide whether to fail or to degrade with NewNopStore.
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return NewNopStore(BackendDisabled), nil
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.Dir, cfg.TTL, logger)
	case BackendMySQL:
		return NewMySQLStore(cfg.MySQLDSN, cfg.TTL, logger)
	case BackendRedis:
		store := NewRedisStore(redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		}), RedisConfig{Prefix: cfg.Prefix, TTL: cfg.TTL})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// OpenStore is NewStore with the fail-open policy applied: a backend that
// cannot be opened is logged and replaced by an always-miss store. The
// returned name is the backend actually in use.
func OpenStore(cfg Config, logger *zap.Logger) (Store, string) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := NewStore(cfg, logger)
	if err != nil {
		logger.Error("cache backend unavailable, caching disabled",
			zap.String("cache_backend", cfg.Backend),
			zap.Error(err),
		)
		return newUnavailableStore(err), BackendNone
	}

	backend := cfg.Backend
	switch {
	case !cfg.Enabled:
		backend = BackendDisabled
	case backend == "":
		backend = BackendMemory
	}

	logger.Info("cache initialized",
		zap.String("cache_backend", backend),
		zap.String("location", store.Location()),
		zap.Duration("ttl", cfg.TTL),
	)
	return NewLoggingStore(store, backend), backend
}
