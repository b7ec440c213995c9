// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Package config loads and validates service configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML config file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Models    ModelsConfig    `koanf:"models"`
	Recommend RecommendConfig `koanf:"recommend"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CatalogConfig locates the catalog row source and on-disk artifacts.
type CatalogConfig struct {
	// Source is the catalog row source: a CSV file path or a DuckDB
	// database path, depending on SourceType.
	Source string `koanf:"source"`

	// SourceType selects the row source backend: "csv" or "duckdb".
	SourceType string `koanf:"source_type"`

	// CacheDir holds the persisted embedding snapshot
	// (catalog_embeddings.bin + catalog_index.json).
	CacheDir string `koanf:"cache_dir"`

	// RunsDir holds uploaded images and rendered visualizations.
	RunsDir string `koanf:"runs_dir"`

	// StaticDir is served at /static for product images. Optional.
	StaticDir string `koanf:"static_dir"`
}

// ModelsConfig configures the external detector and encoder backends.
type ModelsConfig struct {
	DetectorURL string        `koanf:"detector_url"`
	EncoderURL  string        `koanf:"encoder_url"`
	Timeout     time.Duration `koanf:"timeout"`

	// BreakerMaxFailures is the consecutive-failure count that opens the
	// circuit breaker guarding model backend calls.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerCooldown    time.Duration `koanf:"breaker_cooldown"`
}

// RecommendConfig holds ranking defaults.
type RecommendConfig struct {
	// DefaultTopK is the number of catalog matches returned per detected
	// instance when the request does not specify topk.
	DefaultTopK int `koanf:"default_topk"`

	// MaxTopK caps the per-instance match list length.
	MaxTopK int `koanf:"max_topk"`

	// DefaultAlphaImg is the image-similarity weight in the fused score;
	// text similarity receives 1 - alpha.
	DefaultAlphaImg float64 `koanf:"default_alpha_img"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config for koanf unmarshaling.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks configuration invariants after loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %v", c.Server.Timeout)
	}

	switch c.Catalog.SourceType {
	case "csv", "duckdb":
	default:
		return fmt.Errorf("catalog.source_type must be csv or duckdb, got %q", c.Catalog.SourceType)
	}
	if c.Catalog.Source == "" {
		return fmt.Errorf("catalog.source must not be empty")
	}
	if c.Catalog.CacheDir == "" {
		return fmt.Errorf("catalog.cache_dir must not be empty")
	}
	if c.Catalog.RunsDir == "" {
		return fmt.Errorf("catalog.runs_dir must not be empty")
	}

	if c.Models.Timeout <= 0 {
		return fmt.Errorf("models.timeout must be positive, got %v", c.Models.Timeout)
	}

	if c.Recommend.DefaultTopK < 1 {
		return fmt.Errorf("recommend.default_topk must be >= 1, got %d", c.Recommend.DefaultTopK)
	}
	if c.Recommend.MaxTopK < c.Recommend.DefaultTopK {
		return fmt.Errorf("recommend.max_topk (%d) must be >= default_topk (%d)",
			c.Recommend.MaxTopK, c.Recommend.DefaultTopK)
	}
	if c.Recommend.DefaultAlphaImg < 0 || c.Recommend.DefaultAlphaImg > 1 {
		return fmt.Errorf("recommend.default_alpha_img must be in [0, 1], got %f",
			c.Recommend.DefaultAlphaImg)
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("security.rate_limit_reqs must be >= 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %v", c.Security.RateLimitWindow)
		}
	}

	return nil
}
