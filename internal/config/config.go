// Package config loads service configuration from the environment, after
// reading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	Ordiscan OrdiscanConfig
	Batch    BatchConfig
	Server   ServerConfig
	Log      LogConfig
}

// OrdiscanConfig configures the upstream client.
type OrdiscanConfig struct {
	// APIKey is the bearer credential (ORDISCAN_API_KEY). Required.
	APIKey string

	// BaseURL of the API (ORDISCAN_BASE_URL).
	BaseURL string

	// Timeout bounds each upstream round trip (UPSTREAM_TIMEOUT_SEC).
	Timeout time.Duration
}

// BatchConfig configures the orchestrator.
type BatchConfig struct {
	// MaxConcurrency is the number of addresses fetched at once
	// (FETCH_CONCURRENCY). 1 is sequential.
	MaxConcurrency int

	// Shape is the result layout name, "dual" or "held" (RESULT_SHAPE).
	Shape string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Port to listen on (PORT).
	Port int

	// AllowOrigins for CORS (CORS_ALLOW_ORIGINS, comma separated). "*" allows any.
	AllowOrigins []string

	// ShutdownTimeout bounds graceful shutdown (SHUTDOWN_TIMEOUT_SEC).
	ShutdownTimeout time.Duration
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error (LOG_LEVEL).
	Level string

	// Pretty enables console output instead of JSON lines (LOG_PRETTY).
	Pretty bool
}

// Load reads ENV_FILE (default .env) if it exists, then the environment.
// Variables already set in the environment win over the file. Malformed
// numbers or booleans are reported rather than replaced by defaults.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var p parseErrors
	cfg := &Config{
		Ordiscan: OrdiscanConfig{
			APIKey:  os.Getenv("ORDISCAN_API_KEY"),
			BaseURL: getEnv("ORDISCAN_BASE_URL", "https://api.ordiscan.com"),
			Timeout: time.Duration(p.getInt("UPSTREAM_TIMEOUT_SEC", 30)) * time.Second,
		},
		Batch: BatchConfig{
			MaxConcurrency: p.getInt("FETCH_CONCURRENCY", 1),
			Shape:          getEnv("RESULT_SHAPE", "dual"),
		},
		Server: ServerConfig{
			Port:            p.getInt("PORT", 8080),
			AllowOrigins:    getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
			ShutdownTimeout: time.Duration(p.getInt("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: p.getBool("LOG_PRETTY", false),
		},
	}

	if err := errors.Join(p...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ordiscan.APIKey == "" {
		return fmt.Errorf("ORDISCAN_API_KEY is required")
	}
	if c.Ordiscan.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SEC must be positive")
	}
	if c.Batch.MaxConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer (got %q)", key, v)
	}
	return i, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a boolean (got %q)", key, v)
	}
	return b, nil
}

// parseErrors collects malformed values so Load can report all of them.
type parseErrors []error

func (p *parseErrors) getInt(key string, fallback int) int {
	v, err := getEnvInt(key, fallback)
	if err != nil {
		*p = append(*p, err)
	}
	return v
}

func (p *parseErrors) getBool(key string, fallback bool) bool {
	v, err := getEnvBool(key, fallback)
	if err != nil {
		*p = append(*p, err)
	}
	return v
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
