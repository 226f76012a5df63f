package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	maxPromptSize = 512 * 1024 // 512KB per prompt
	pingTimeout   = 5 * time.Second
)

// OllamaClient talks to an Ollama server through its native /api/chat
// and /api/tags endpoints.
type OllamaClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaClient creates a new Ollama client with the given configuration.
func NewOllamaClient(cfg Config, logger *zap.Logger) (*OllamaClient, error) {
	cfg.Provider = ProviderOllama
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &OllamaClient{
		cfg:        cfg,
		httpClient: cfg.httpClient(),
		logger:     logger.Named("ollama"),
	}, nil
}

func (c *OllamaClient) Name() string { return ProviderOllama }

// Generate sends prompt as a single user message with streaming disabled
// and returns the assistant's content.
func (c *OllamaClient) Generate(parentCtx context.Context, prompt string) (string, error) {
	start := time.Now()

	if len(prompt) > maxPromptSize {
		return "", fmt.Errorf("ollama: prompt too large (%d bytes, max %d)", len(prompt), maxPromptSize)
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{
		Model: c.cfg.Model,
		Messages: []ollamaMessage{
			{Role: "user", Content: prompt},
		},
		Stream: false,
		Options: ollamaOptions{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.MaxTokens,
			NumGPU:      c.cfg.numGPU(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/api/chat"

	// doOnce builds a fresh *http.Request for each attempt
	doOnce := func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build HTTP request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)
		return c.httpClient.Do(req)
	}

	resp, err := doWithRetry(ctx, c.logger, c.cfg.MaxRetries+1, c.cfg.BaseBackoff, doOnce)
	if err != nil {
		c.logger.Error("llm request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return "", unreachable("ollama chat", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := readStatusError(resp)
		c.logger.Error("llm upstream error",
			zap.Int("status", serr.StatusCode),
			zap.String("error_message", serr.Message),
		)
		return "", unreachable("ollama chat", serr)
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", unreachable("ollama chat", fmt.Errorf("decode upstream response: %w", err))
	}

	c.logger.Debug("llm request completed",
		zap.String("model", out.Model),
		zap.Int("prompt_tokens", out.PromptEvalCount),
		zap.Int("completion_tokens", out.EvalCount),
		zap.String("done_reason", out.DoneReason),
		zap.Duration("duration", time.Since(start)),
	)

	return out.Message.Content, nil
}

// Ping checks that the server answers /api/tags with 200.
func (c *OllamaClient) Ping(ctx context.Context) error {
	resp, err := c.tags(ctx)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ListModels returns the names of the models the server has pulled.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.tags(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, unreachable("ollama tags", fmt.Errorf("decode upstream response: %w", err))
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// tags performs a single GET /api/tags. A non-200 reply is returned as a
// *StatusError without the ErrBackendUnreachable wrapper: the server is up.
func (c *OllamaClient) tags(parentCtx context.Context) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(parentCtx, pingTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build HTTP request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, unreachable("ollama tags", err)
	}
	if resp.StatusCode != http.StatusOK {
		serr := readStatusError(resp)
		cancel()
		return nil, serr
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *OllamaClient) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// Close releases resources held by the client.
func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// cancelOnClose releases a request context once the body is done with.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
