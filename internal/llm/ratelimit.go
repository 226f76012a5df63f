package llm

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// RateLimited holds Generate calls to at most limit per second.
type RateLimited struct {
	Generator
	limiter *rate.Limiter
}

// WithRateLimit wraps g. A limit <= 0 returns g unchanged.
func WithRateLimit(g Generator, limit float64) Generator {
	if limit <= 0 {
		return g
	}
	return &RateLimited{
		Generator: g,
		limiter:   rate.NewLimiter(rate.Limit(limit), 1),
	}
}

func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}
	return r.Generator.Generate(ctx, prompt)
}

func (r *RateLimited) Unwrap() Generator {
	return r.Generator
}

func (r *RateLimited) Close() error {
	if c, ok := r.Generator.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
