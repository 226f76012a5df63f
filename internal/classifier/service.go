// Package classifier answers "is this text spam?" by asking an LLM and
// remembering the answer.
package classifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/r-ms/detect-spam/internal/cache"
	"github.com/r-ms/detect-spam/internal/llm"
	"github.com/r-ms/detect-spam/internal/metrics"
	"github.com/r-ms/detect-spam/internal/verdict"
	"github.com/r-ms/detect-spam/pkg/logging/logging"
)

// logTextLen is how much of the message goes into cache log lines.
const logTextLen = 50

// Result is a verdict plus where it came from.
type Result struct {
	IsSpam bool   `json:"is_spam"`
	Reason string `json:"reason"`
	Cached bool   `json:"cached"`
}

type Options struct {
	// MaxTextBytes caps the text placed in the prompt. The cache key always
	// covers the full text.
	MaxTextBytes int
}

type Service struct {
	generator  llm.Generator
	cache      *cache.ResultCache
	normalizer *verdict.Normalizer
	prompt     *Prompt
	opts       Options
}

func NewService(
	generator llm.Generator,
	results *cache.ResultCache,
	normalizer *verdict.Normalizer,
	prompt *Prompt,
	opts Options,
) *Service {
	if results == nil {
		results = cache.NewResultCache(nil, cache.ResultCacheOptions{})
	}
	if normalizer == nil {
		normalizer = verdict.NewNormalizer(verdict.FormatTwoLine)
	}
	if prompt == nil {
		prompt = DefaultPrompt(normalizer.Format())
	}
	return &Service{
		generator:  generator,
		cache:      results,
		normalizer: normalizer,
		prompt:     prompt,
		opts:       opts,
	}
}

// Check classifies text. A cached verdict is returned without calling the
// backend. Backend failures are returned and nothing is cached.
func (s *Service) Check(ctx context.Context, text string) (Result, error) {
	logger := logging.L(ctx)
	start := time.Now()

	key := cache.Fingerprint(text)

	lookupStart := time.Now()
	cached, hit := s.cache.Get(ctx, key)
	lookupLatency := time.Since(lookupStart)

	if hit {
		logger.Info("cache_decision",
			zap.String("hash_key", key),
			zap.String("text", logging.Truncate(text, logTextLen)),
			zap.Bool("cache_hit", true),
			zap.Duration("cache_lookup_latency_ms", lookupLatency),
			zap.Duration("total_latency_ms", time.Since(start)),
		)
		return s.finish(cached, true), nil
	}

	promptText, truncated := truncateText(text, s.opts.MaxTextBytes)
	if truncated {
		logger.Debug("text truncated for prompt",
			zap.Int("original_size", len(text)),
			zap.Int("max_size", s.opts.MaxTextBytes),
		)
	}

	llmStart := time.Now()
	raw, err := s.generator.Generate(ctx, s.prompt.Render(promptText))
	llmLatency := time.Since(llmStart)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.BackendLatencySeconds.
		WithLabelValues(s.generator.Name(), outcome).
		Observe(llmLatency.Seconds())

	if err != nil {
		logger.Error("backend_generate",
			zap.String("backend", s.generator.Name()),
			zap.Duration("llm_latency_ms", llmLatency),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	logger.Debug("backend_generate",
		zap.String("backend", s.generator.Name()),
		zap.String("raw_response", logging.Truncate(raw, 200)),
		zap.Duration("llm_latency_ms", llmLatency),
	)

	res, _ := s.normalizer.Normalize(ctx, raw)
	s.cache.Put(ctx, key, res)

	logger.Info("cache_decision",
		zap.String("hash_key", key),
		zap.String("text", logging.Truncate(text, logTextLen)),
		zap.Bool("cache_hit", false),
		zap.Duration("cache_lookup_latency_ms", lookupLatency),
		zap.Duration("llm_latency_ms", llmLatency),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	return s.finish(res, false), nil
}

// Cache exposes the result cache for stats and clearing.
func (s *Service) Cache() *cache.ResultCache {
	return s.cache
}

// Generator returns the backend in use.
func (s *Service) Generator() llm.Generator {
	return s.generator
}

func (s *Service) finish(res verdict.Result, cached bool) Result {
	metrics.VerdictsTotal.
		WithLabelValues(strconv.FormatBool(res.IsSpam), strconv.FormatBool(cached)).
		Inc()
	return Result{IsSpam: res.IsSpam, Reason: res.Reason, Cached: cached}
}
