// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Authentication modes.
const (
	AuthModeStub     = "stub"
	AuthModeAccounts = "accounts"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	LogLevel        slog.Level
	Gemini          GeminiConfig
	AnalysisTimeout time.Duration // 0 waits for the model indefinitely
	MaxImageBytes   int64
	SessionTTL      time.Duration
	SweepInterval   time.Duration
	AuthMode        string
	DBPath          string
	RateLimit       RateLimitConfig
	PDFFontPaths    []string
}

// GeminiConfig selects the model and credentials.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// RateLimitConfig bounds analysis requests per device.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	apiKey := getEnv("GEMINI_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("API_KEY", "")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    parseLevel(getEnv("LOG_LEVEL", "info")),
		Gemini: GeminiConfig{
			APIKey: strings.TrimSpace(apiKey),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		AnalysisTimeout: getEnvDuration("ANALYSIS_TIMEOUT", 0),
		MaxImageBytes:   int64(getEnvInt("MAX_IMAGE_BYTES", 10<<20)),
		SessionTTL:      getEnvDuration("SESSION_TTL", 60*time.Minute),
		SweepInterval:   getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		AuthMode:        strings.ToLower(getEnv("AUTH_MODE", AuthModeStub)),
		DBPath:          getEnv("DB_PATH", "./data/neuroscanx.db"),
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("ANALYZE_RATE_LIMIT", 10),
			WindowDuration:    getEnvDuration("ANALYZE_RATE_WINDOW", time.Minute),
		},
		PDFFontPaths: splitList(getEnv("PDF_FONT_PATHS", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY (or API_KEY) must be set")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.AnalysisTimeout < 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be >= 0")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0")
	}
	if c.SessionTTL <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_TTL and SESSION_SWEEP_INTERVAL must be > 0")
	}
	switch c.AuthMode {
	case AuthModeStub:
	case AuthModeAccounts:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when AUTH_MODE=%s", AuthModeAccounts)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeStub, AuthModeAccounts, c.AuthMode)
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("ANALYZE_RATE_LIMIT and ANALYZE_RATE_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the API.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ":") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
