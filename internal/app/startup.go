package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/r-ms/detect-spam/internal/config"
	"github.com/r-ms/detect-spam/internal/llm"
)

// CheckModel verifies the configured model is present on backends that can
// list their models. Problems are logged; the service starts regardless.
func CheckModel(ctx context.Context, gen llm.Generator, model string, logger *zap.Logger) bool {
	lister, ok := llm.AsModelLister(gen)
	if !ok {
		return true
	}

	names, err := lister.ListModels(ctx)
	if err != nil {
		logger.Warn("could not list backend models",
			zap.String("backend", gen.Name()),
			zap.Error(err),
		)
		return false
	}

	if !llm.ModelAvailable(names, model) {
		logger.Warn("model not found on backend",
			zap.String("model", model),
			zap.Strings("available", names),
			zap.String("hint", "ollama pull "+model),
		)
		return false
	}

	logger.Info("model available", zap.String("model", model))
	return true
}

// LogConfig dumps the effective configuration with secrets redacted.
func LogConfig(logger *zap.Logger, cfg *config.Config) {
	token := ""
	if cfg.Backend.Token != "" {
		token = "***"
	}
	dsn := ""
	if cfg.Cache.MySQLDSN != "" {
		dsn = "***"
	}

	logger.Info("loaded config",
		zap.String("provider", cfg.Backend.Provider),
		zap.String("host", cfg.Backend.Host),
		zap.String("model", cfg.Backend.Model),
		zap.String("device", cfg.Backend.Device),
		zap.String("token", token),
		zap.Duration("backend_timeout", cfg.Backend.Timeout),
		zap.Int("max_retries", cfg.Backend.MaxRetries),
		zap.Float64("rate_limit", cfg.Backend.RateLimit),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("cache_dir", cfg.Cache.Dir),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.String("redis_addr", cfg.Cache.RedisAddr),
		zap.String("mysql_dsn", dsn),
		zap.Int("port", cfg.Server.Port),
		zap.String("response_format", cfg.Classifier.ResponseFormat),
		zap.String("prompt_file", cfg.Classifier.PromptFile),
	)
}
