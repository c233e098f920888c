// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	SessionTTL    time.Duration
	AutosaveDelay time.Duration
	Analysis      AnalysisConfig
	Project       ProjectConfig
}

// AnalysisConfig controls the remote multi-agent analysis service client.
type AnalysisConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// ProjectConfig controls the project service integration. An empty
// BaseURL disables it.
type ProjectConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/readiness.db"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 14*24*time.Hour),
		AutosaveDelay: getEnvDuration("AUTOSAVE_DELAY", 2*time.Second),
		Analysis: AnalysisConfig{
			BaseURL:        getEnv("ANALYSIS_SERVICE_URL", "http://localhost:8600"),
			RequestTimeout: getEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second),
		},
		Project: ProjectConfig{
			BaseURL:        getEnv("PROJECT_SERVICE_URL", ""),
			RequestTimeout: getEnvDuration("PROJECT_TIMEOUT", 15*time.Second),
		},
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
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Analysis.BaseURL == "" {
		return fmt.Errorf("ANALYSIS_SERVICE_URL cannot be empty")
	}
	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("AUTOSAVE_DELAY must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
		return d
	}
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
