package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New builds the Generator selected by cfg.Provider, rate limited when
// cfg.RateLimit is set.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		g   Generator
		err error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOllama, "":
		g, err = NewOllamaClient(cfg, logger)
	case ProviderOpenAI:
		g, err = NewOpenAIClient(cfg, logger)
	case ProviderGemini:
		g, err = NewGeminiClient(ctx, cfg, logger)
	case ProviderBedrock:
		g, err = NewBedrockClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithRateLimit(g, cfg.RateLimit), nil
}
