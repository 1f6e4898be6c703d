// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExtractionConfig holds settings for the language-model extraction call.
type ExtractionConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Timeout     time.Duration
	MaxAttempts int
}

// CaseboardConfig holds credentials for the practice-management API that
// backs both the case registry search and task creation.
type CaseboardConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Timeout      time.Duration
}

// Config holds all configuration for the intake service.
type Config struct {
	Port int

	// Audit store (Postgres)
	DatabaseURL  string
	StoreTimeout time.Duration

	// Redis
	RedisURL       string
	ProcessedQueue string

	// Deduplication window for emails without a Message-ID. Retried
	// deliveries inside one window collapse to a single fingerprint.
	DedupWindow time.Duration

	Extraction ExtractionConfig
	Caseboard  CaseboardConfig
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Processed string `yaml:"processed"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Extraction struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"extraction"`
	Caseboard struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		TokenURL     string `yaml:"token_url"`
		BaseURL      string `yaml:"base_url"`
	} `yaml:"caseboard"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. Missing required secrets fail fast with an error
// that enumerates every absent value.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config/config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	case os.IsNotExist(err):
		// No file, everything comes from the environment.
	default:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		Port:           envOrDefaultInt("PORT", 8080),
		DatabaseURL:    firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		StoreTimeout:   envOrDefaultDuration("STORE_TIMEOUT", 5*time.Second),
		RedisURL:       firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		ProcessedQueue: firstNonEmpty(raw.Redis.Queues.Processed, envOrDefault("PROCESSED_QUEUE", "intake.processed")),
		DedupWindow:    envOrDefaultDuration("DEDUP_WINDOW", 24*time.Hour),
		Extraction: ExtractionConfig{
			APIKey:      firstNonEmpty(raw.Extraction.APIKey, os.Getenv("ANTHROPIC_API_KEY")),
			Model:       firstNonEmpty(raw.Extraction.Model, envOrDefault("EXTRACTION_MODEL", "claude-sonnet-4-20250514")),
			BaseURL:     firstNonEmpty(raw.Extraction.BaseURL, envOrDefault("EXTRACTION_BASE_URL", "https://api.anthropic.com")),
			MaxTokens:   envOrDefaultInt("EXTRACTION_MAX_TOKENS", 4096),
			Timeout:     envOrDefaultDuration("EXTRACTION_TIMEOUT", 60*time.Second),
			MaxAttempts: envOrDefaultInt("EXTRACTION_MAX_ATTEMPTS", 3),
		},
		Caseboard: CaseboardConfig{
			ClientID:     firstNonEmpty(raw.Caseboard.ClientID, os.Getenv("CASEBOARD_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.Caseboard.ClientSecret, os.Getenv("CASEBOARD_CLIENT_SECRET")),
			TokenURL:     firstNonEmpty(raw.Caseboard.TokenURL, os.Getenv("CASEBOARD_TOKEN_URL")),
			BaseURL:      firstNonEmpty(raw.Caseboard.BaseURL, os.Getenv("CASEBOARD_BASE_URL")),
			Timeout:      envOrDefaultDuration("CASEBOARD_TIMEOUT", 10*time.Second),
		},
	}

	var missing []string
	if cfg.Extraction.APIKey == "" {
		missing = append(missing, "extraction.api_key (ANTHROPIC_API_KEY)")
	}
	if cfg.Caseboard.ClientID == "" {
		missing = append(missing, "caseboard.client_id (CASEBOARD_CLIENT_ID)")
	}
	if cfg.Caseboard.ClientSecret == "" {
		missing = append(missing, "caseboard.client_secret (CASEBOARD_CLIENT_SECRET)")
	}
	if cfg.Caseboard.BaseURL == "" {
		missing = append(missing, "caseboard.base_url (CASEBOARD_BASE_URL)")
	}
	if cfg.Caseboard.TokenURL == "" {
		missing = append(missing, "caseboard.token_url (CASEBOARD_TOKEN_URL)")
	}
	if cfg.DatabaseURL == "" {
		missing = append(missing, "database.url (DATABASE_URL)")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if cfg.DedupWindow <= 0 {
		return nil, fmt.Errorf("DEDUP_WINDOW must be positive, got %s", cfg.DedupWindow)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
