package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	//required fields
	Provider string
	Model    string

	BaseURL string // ollama: required; openai/gemini: optional endpoint override
	APIKey  string // optional; sent as Bearer token or provider API key
	Region  string // bedrock only

	// Device selects model placement for ollama: "cpu", "gpu"/"cuda" or "auto".
	Device string

	Temperature float32
	MaxTokens   int // 0 = backend default

	UpstreamTimeout time.Duration // per-request timeout (default: 60s)
	MaxRetries      int           // retry attempts after the first (0 = none)
	BaseBackoff     time.Duration // initial backoff (default: 100ms)
	RateLimit       float64       // requests per second, 0 = unlimited

	// Optional connection pool settings
	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// Validate checks required fields only.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model is required")
	}

	switch c.Provider {
	case ProviderOllama:
		if c.BaseURL == "" {
			return errors.New("host is required for ollama")
		}
	case ProviderBedrock:
		if c.Region == "" {
			return errors.New("region is required for bedrock")
		}
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	switch strings.ToLower(c.Device) {
	case "", "auto", "cpu", "gpu", "cuda":
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}

	return nil
}

// WithDefaults returns a copy of Config with sane defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = ProviderOllama
	}

	// Normalize BaseURL: trim trailing slashes so we can safely append paths.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

// numGPU maps Device onto Ollama's num_gpu option. nil leaves the
// server's own placement in effect.
func (c *Config) numGPU() *int {
	var n int
	switch strings.ToLower(c.Device) {
	case "cpu":
		n = 0
	case "gpu", "cuda":
		// Ollama caps this at the model's layer count.
		n = 999
	default:
		return nil
	}
	return &n
}

// httpClient returns cfg.HTTPClient or a pooled client built from cfg.
func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{
		Transport: defaultTransport(*c),
	}
}

// defaultTransport creates a production-ready HTTP transport
// with connection pooling and reasonable timeouts.
func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
