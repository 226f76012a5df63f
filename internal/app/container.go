// Package app wires the service together.
package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/r-ms/detect-spam/internal/cache"
	"github.com/r-ms/detect-spam/internal/classifier"
	"github.com/r-ms/detect-spam/internal/config"
	"github.com/r-ms/detect-spam/internal/handlers"
	"github.com/r-ms/detect-spam/internal/httpserver"
	"github.com/r-ms/detect-spam/internal/llm"
	"github.com/r-ms/detect-spam/internal/metrics"
	"github.com/r-ms/detect-spam/internal/verdict"
	"github.com/r-ms/detect-spam/pkg/logging/logging"
)

// BuildContainer creates the dependency injection container. Nothing is
// constructed until a caller invokes something that needs it.
func BuildContainer(configPath string) (*dig.Container, error) {
	c := dig.New()

	providers := []any{
		func() (*config.Config, error) { return config.Load(configPath) },
		newLogger,
		newGenerator,
		newResultCache,
		newNormalizer,
		newPrompt,
		newService,
		newRouter,
		newServer,
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}

// LLMConfig maps service settings onto the backend client configuration.
func LLMConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		Provider:        cfg.Backend.Provider,
		Model:           cfg.Backend.Model,
		BaseURL:         cfg.Backend.Host,
		APIKey:          cfg.Backend.Token,
		Region:          cfg.Backend.Region,
		Device:          cfg.Backend.Device,
		Temperature:     cfg.Backend.Temperature,
		MaxTokens:       cfg.Backend.MaxTokens,
		UpstreamTimeout: cfg.Backend.Timeout,
		MaxRetries:      cfg.Backend.MaxRetries,
		RateLimit:       cfg.Backend.RateLimit,
	}
}

func newGenerator(cfg *config.Config, logger *zap.Logger) (llm.Generator, error) {
	if cfg.Backend.Token == "" && cfg.Backend.Provider != llm.ProviderBedrock {
		logger.Warn("no backend token configured, sending unauthenticated requests",
			zap.String("provider", cfg.Backend.Provider),
		)
	}
	return llm.New(context.Background(), LLMConfig(cfg), logger)
}

// CacheConfig maps service settings onto the cache store configuration.
func CacheConfig(cfg *config.Config) cache.Config {
	return cache.Config{
		Enabled:    cfg.Cache.Enabled,
		Backend:    cfg.Cache.Backend,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Dir:        cfg.Cache.Dir,
		RedisAddr:  cfg.Cache.RedisAddr,
		Prefix:     cfg.Cache.RedisPrefix,
		MySQLDSN:   cfg.Cache.MySQLDSN,
	}
}

func newResultCache(cfg *config.Config, logger *zap.Logger) *cache.ResultCache {
	store, backend := cache.OpenStore(CacheConfig(cfg), logger)
	return cache.NewResultCache(store, cache.ResultCacheOptions{
		Backend:           backend,
		ResetStatsOnClear: cfg.Cache.ResetStatsOnClear,
	})
}

func newNormalizer(cfg *config.Config) (*verdict.Normalizer, error) {
	format, err := verdict.ParseFormat(cfg.Classifier.ResponseFormat)
	if err != nil {
		return nil, err
	}
	return verdict.NewNormalizer(format), nil
}

func newPrompt(cfg *config.Config, n *verdict.Normalizer) (*classifier.Prompt, error) {
	return classifier.LoadPrompt(cfg.Classifier.PromptFile, n.Format())
}

func newService(
	cfg *config.Config,
	gen llm.Generator,
	rc *cache.ResultCache,
	n *verdict.Normalizer,
	p *classifier.Prompt,
) *classifier.Service {
	return classifier.NewService(gen, rc, n, p, classifier.Options{
		MaxTextBytes: cfg.Classifier.MaxTextBytes,
	})
}

func newRouter(
	cfg *config.Config,
	logger *zap.Logger,
	svc *classifier.Service,
) http.Handler {
	metrics.Register()

	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, httpserver.Handlers{
		Spam:   handlers.NewSpamHandler(svc),
		Health: handlers.NewHealthHandler(handlers.HealthInfo{Model: cfg.Backend.Model, Host: cfg.Backend.Host}, svc.Generator(), svc.Cache()),
		Cache:  handlers.NewCacheHandler(svc.Cache()),
	})
	return r
}

func newServer(cfg *config.Config, h http.Handler) *http.Server {
	writeTimeout := 30 * time.Second
	if cfg.Server.RequestTimeout > 0 {
		writeTimeout = cfg.Server.RequestTimeout + 5*time.Second
	}

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

// Close releases the cache and backend client held by the container.
func Close(c *dig.Container) error {
	var errs []error
	err := c.Invoke(func(rc *cache.ResultCache, gen llm.Generator) {
		errs = append(errs, rc.Close())
		if closer, ok := gen.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}
