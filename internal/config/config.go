// Package config loads configuration from an optional TOML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all server and CLI configuration.
type Config struct {
	// Server
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"`
	MaxBodySize int64  `toml:"max_body_size"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// AI provider ("gateway" or "ollama")
	AIProvider       string        `toml:"ai_provider"`
	AIGatewayURL     string        `toml:"ai_gateway_url"`
	AIGatewayKey     string        `toml:"-"`
	AIModel          string        `toml:"ai_model"`
	AIGatewayTimeout time.Duration `toml:"ai_gateway_timeout"`
	OllamaHost       string        `toml:"ollama_host"`
	OllamaModel      string        `toml:"ollama_model"`

	// Snapshot storage ("local", "s3", "postgres", "sqlite" or "memory")
	StorageBackend   string `toml:"storage_backend"`
	LocalStoragePath string `toml:"local_storage_path"`
	WatchSnapshot    bool   `toml:"watch_snapshot"`

	// S3 storage
	S3Endpoint  string `toml:"s3_endpoint"`
	S3Bucket    string `toml:"s3_bucket"`
	S3AccessKey string `toml:"-"`
	S3SecretKey string `toml:"-"`
	S3Region    string `toml:"s3_region"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`

	// Database
	DatabaseURL string `toml:"-"`
	SQLitePath  string `toml:"sqlite_path"`

	// Rate limiting on the chat function, per client (0 = unlimited)
	RateLimitPerMin int `toml:"rate_limit_per_min"`

	// CLI
	ServerURL string `toml:"server_url"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ListenAddr:       ":8080",
		MetricsAddr:      ":9090",
		MaxBodySize:      2 * 1024 * 1024,
		LogLevel:         "info",
		LogFormat:        "json",
		AIProvider:       "gateway",
		AIGatewayURL:     "https://ai.gateway.lovable.dev/v1/chat/completions",
		AIModel:          "google/gemini-3-flash-preview",
		AIGatewayTimeout: 120 * time.Second,
		OllamaHost:       "http://localhost:11434",
		OllamaModel:      "llama3.2",
		StorageBackend:   "local",
		LocalStoragePath: "/data/faraday",
		S3Endpoint:       "http://localhost:9000",
		S3Bucket:         "faraday",
		S3AccessKey:      "minioadmin",
		S3SecretKey:      "minioadmin",
		S3Region:         "us-east-1",
		SQLitePath:       "/data/faraday/faraday.sqlite",
		RateLimitPerMin:  30,
		ServerURL:        "http://localhost:8080",
	}
}

// Load reads configuration: defaults, then the TOML file named by
// FARADAY_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("FARADAY_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.ListenAddr = envOr("LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = envOr("METRICS_ADDR", cfg.MetricsAddr)
	cfg.MaxBodySize = envInt64("MAX_BODY_SIZE", cfg.MaxBodySize)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.AIProvider = envOr("AI_PROVIDER", cfg.AIProvider)
	cfg.AIGatewayURL = envOr("AI_GATEWAY_URL", cfg.AIGatewayURL)
	cfg.AIGatewayKey = envOr("LOVABLE_API_KEY", cfg.AIGatewayKey)
	cfg.AIModel = envOr("AI_MODEL", cfg.AIModel)
	cfg.AIGatewayTimeout = envDuration("AI_GATEWAY_TIMEOUT", cfg.AIGatewayTimeout)
	cfg.OllamaHost = envOr("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OllamaModel = envOr("OLLAMA_MODEL", cfg.OllamaModel)
	cfg.StorageBackend = envOr("STORAGE_BACKEND", cfg.StorageBackend)
	cfg.LocalStoragePath = envOr("LOCAL_STORAGE_PATH", cfg.LocalStoragePath)
	cfg.WatchSnapshot = envBool("WATCH_SNAPSHOT", cfg.WatchSnapshot)
	cfg.S3Endpoint = envOr("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Bucket = envOr("S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = envOr("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = envOr("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3Region = envOr("S3_REGION", cfg.S3Region)
	cfg.S3UseSSL = envBool("S3_USE_SSL", cfg.S3UseSSL)
	cfg.DatabaseURL = envOr("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = envOr("SQLITE_PATH", cfg.SQLitePath)
	cfg.RateLimitPerMin = envInt("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	cfg.ServerURL = envOr("SERVER_URL", cfg.ServerURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.AIProvider {
	case "gateway", "ollama":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}
	switch c.StorageBackend {
	case "local", "s3", "sqlite", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
