// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8000", cfg.Server.Addr())
	}
	if cfg.Catalog.Source != "catalog/catalog.csv" || cfg.Catalog.SourceType != "csv" {
		t.Errorf("Catalog = %+v, want CSV defaults", cfg.Catalog)
	}
	if cfg.Recommend.DefaultTopK != 3 || cfg.Recommend.DefaultAlphaImg != 0.7 {
		t.Errorf("Recommend = %+v, want topk=3 alpha=0.7", cfg.Recommend)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CATALOG_CSV", "/data/cat.csv")
	t.Setenv("TOPK", "5")
	t.Setenv("ALPHA_IMG", "0.4")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Catalog.Source != "/data/cat.csv" {
		t.Errorf("Catalog.Source = %q, want /data/cat.csv", cfg.Catalog.Source)
	}
	if cfg.Recommend.DefaultTopK != 5 {
		t.Errorf("DefaultTopK = %d, want 5", cfg.Recommend.DefaultTopK)
	}
	if cfg.Recommend.DefaultAlphaImg != 0.4 {
		t.Errorf("DefaultAlphaImg = %v, want 0.4", cfg.Recommend.DefaultAlphaImg)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != 2 ||
		cfg.Security.CORSOrigins[0] != want[0] || cfg.Security.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
}

func TestLoadUnmappedEnvIgnored(t *testing.T) {
	t.Setenv("RANDOM_UNRELATED_VAR", "true")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7070\ncatalog:\n  source_type: duckdb\n  source: /data/products.db\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Catalog.SourceType != "duckdb" || cfg.Catalog.Source != "/data/products.db" {
		t.Errorf("Catalog = %+v, want duckdb source", cfg.Catalog)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad source type", func(c *Config) { c.Catalog.SourceType = "sqlite" }, true},
		{"empty source", func(c *Config) { c.Catalog.Source = "" }, true},
		{"zero topk", func(c *Config) { c.Recommend.DefaultTopK = 0 }, true},
		{"topk above max", func(c *Config) { c.Recommend.DefaultTopK = 100 }, true},
		{"alpha above one", func(c *Config) { c.Recommend.DefaultAlphaImg = 1.5 }, true},
		{"negative alpha", func(c *Config) { c.Recommend.DefaultAlphaImg = -0.1 }, true},
		{"bad timeout", func(c *Config) { c.Server.Timeout = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
