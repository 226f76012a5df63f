package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// ErrBackendUnreachable wraps every failure to obtain text from a backend:
// transport errors, upstream error statuses and undecodable replies.
var ErrBackendUnreachable = errors.New("llm backend unreachable")

// Generator turns a prompt into raw model text. Only the final text is
// returned, even when the backend could stream.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name is the provider name used in logs and metric labels.
	Name() string
}

// Pinger is implemented by backends that can report reachability cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelLister is implemented by backends that can enumerate local models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// StatusError is a non-2xx reply from an HTTP backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// Unwrapper is implemented by decorators around a Generator.
type Unwrapper interface {
	Unwrap() Generator
}

// AsPinger finds a Pinger in g or in any generator it wraps.
func AsPinger(g Generator) (Pinger, bool) {
	for g != nil {
		if p, ok := g.(Pinger); ok {
			return p, true
		}
		u, ok := g.(Unwrapper)
		if !ok {
			break
		}
		g = u.Unwrap()
	}
	return nil, false
}

// AsModelLister finds a ModelLister in g or in any generator it wraps.
func AsModelLister(g Generator) (ModelLister, bool) {
	for g != nil {
		if l, ok := g.(ModelLister); ok {
			return l, true
		}
		u, ok := g.(Unwrapper)
		if !ok {
			break
		}
		g = u.Unwrap()
	}
	return nil, false
}

// ModelAvailable reports whether model is among names. A bare model name
// also matches its ":latest" tag.
func ModelAvailable(names []string, model string) bool {
	for _, n := range names {
		if n == model || n == model+":latest" {
			return true
		}
	}
	return false
}

func unreachable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackendUnreachable, op, err)
}
