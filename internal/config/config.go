// Package config loads service settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SPAMCHECK"

type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Server     ServerConfig     `mapstructure:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type BackendConfig struct {
	Provider    string        `mapstructure:"provider"`
	Host        string        `mapstructure:"host"`
	Model       string        `mapstructure:"model"`
	Device      string        `mapstructure:"device"`
	Token       string        `mapstructure:"token"`
	Region      string        `mapstructure:"region"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

type CacheConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Backend           string        `mapstructure:"backend"`
	Dir               string        `mapstructure:"dir"`
	TTL               time.Duration `mapstructure:"ttl"`
	MaxEntries        int           `mapstructure:"max_entries"`
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisPrefix       string        `mapstructure:"redis_prefix"`
	MySQLDSN          string        `mapstructure:"mysql_dsn"`
	ResetStatsOnClear bool          `mapstructure:"reset_stats_on_clear"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

type ClassifierConfig struct {
	MaxTextBytes   int    `mapstructure:"max_text_bytes"`
	ResponseFormat string `mapstructure:"response_format"`
	PromptFile     string `mapstructure:"prompt_file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps keys onto the plain variable names used by existing
// deployments. SPAMCHECK_* names still take precedence.
var legacyEnv = map[string]string{
	"backend.host":   "OLLAMA_HOST",
	"backend.model":  "MODEL_NAME",
	"backend.device": "DEVICE",
	"backend.token":  "HF_TOKEN",
	"server.port":    "PORT",
}

// Load reads configuration. An empty path searches the usual locations
// and tolerates a missing file; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("spamcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/spamcheck/")
		v.AddConfigPath("$HOME/.spamcheck")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// NewViper returns a viper instance with defaults and env bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}

	return v
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.provider", "ollama")
	v.SetDefault("backend.host", "http://localhost:11434")
	v.SetDefault("backend.model", "llama3")
	v.SetDefault("backend.device", "auto")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.region", "us-east-1")
	v.SetDefault("backend.timeout", "60s")
	v.SetDefault("backend.max_retries", 2)
	v.SetDefault("backend.rate_limit", 0)
	v.SetDefault("backend.temperature", 0.1)
	v.SetDefault("backend.max_tokens", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis_prefix", "spamcheck")
	v.SetDefault("cache.mysql_dsn", "")
	v.SetDefault("cache.reset_stats_on_clear", false)

	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 512*1024)

	// Classifier defaults
	v.SetDefault("classifier.max_text_bytes", 16*1024)
	v.SetDefault("classifier.response_format", "two_line")
	v.SetDefault("classifier.prompt_file", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (c *Config) normalize() {
	c.Backend.Provider = strings.ToLower(strings.TrimSpace(c.Backend.Provider))
	c.Backend.Device = strings.ToLower(strings.TrimSpace(c.Backend.Device))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Classifier.ResponseFormat = strings.ToLower(strings.TrimSpace(c.Classifier.ResponseFormat))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Backend.Provider {
	case "ollama", "openai", "gemini", "bedrock":
	default:
		return fmt.Errorf("backend.provider: unknown provider %q", c.Backend.Provider)
	}
	if c.Backend.Model == "" {
		return errors.New("backend.model is required")
	}
	if c.Backend.Provider == "ollama" && c.Backend.Host == "" {
		return errors.New("backend.host is required for ollama")
	}

	switch c.Cache.Backend {
	case "memory", "sqlite", "redis", "mysql":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.Backend == "mysql" && c.Cache.MySQLDSN == "" {
		return errors.New("cache.mysql_dsn is required for the mysql backend")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must not be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}

	switch c.Classifier.ResponseFormat {
	case "two_line", "json":
	default:
		return fmt.Errorf("classifier.response_format: unknown format %q", c.Classifier.ResponseFormat)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
