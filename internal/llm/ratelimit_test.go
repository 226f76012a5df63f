package llm

import (
	"context"
	"testing"
	"time"
)

type stubGenerator struct {
	calls int
}

func (s *stubGenerator) Generate(context.Context, string) (string, error) {
	s.calls++
	return "true\nreason", nil
}

func (s *stubGenerator) Name() string { return "stub" }

type pingingGenerator struct {
	stubGenerator
}

func (p *pingingGenerator) Ping(context.Context) error { return nil }

func TestWithRateLimit_ZeroIsPassthrough(t *testing.T) {
	g := &stubGenerator{}
	if WithRateLimit(g, 0) != Generator(g) {
		t.Fatalf("expected unwrapped generator for limit 0")
	}
}

func TestWithRateLimit_BlocksUntilContextDone(t *testing.T) {
	g := &stubGenerator{}
	limited := WithRateLimit(g, 0.001)

	if _, err := limited.Generate(context.Background(), "a"); err != nil {
		t.Fatalf("first call should pass the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := limited.Generate(ctx, "b"); err == nil {
		t.Fatalf("expected rate limit error for second call")
	}
	if g.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", g.calls)
	}
	if limited.Name() != "stub" {
		t.Fatalf("Name should be forwarded, got %q", limited.Name())
	}
}

func TestAsPinger_UnwrapsDecorators(t *testing.T) {
	limited := WithRateLimit(&pingingGenerator{}, 5)

	if _, ok := AsPinger(limited); !ok {
		t.Fatalf("expected Pinger through rate limit wrapper")
	}
	if _, ok := AsPinger(WithRateLimit(&stubGenerator{}, 5)); ok {
		t.Fatalf("stub generator does not ping")
	}
	if _, ok := AsModelLister(limited); ok {
		t.Fatalf("pingingGenerator does not list models")
	}
}
