package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name: "valid flags",
			args: []string{"-cache-ttl", "5m", "-retention", "720h", "-log-level", "debug"},
		},
		{
			name:        "zero cache ttl from flag",
			args:        []string{"-cache-ttl", "0s"},
			expectError: true,
			errorSubstr: "cache ttl must be positive",
		},
		{
			name:        "invalid cache ttl from env",
			envVars:     map[string]string{"THERMONET_CACHE_TTL": "soon"},
			expectError: true,
			errorSubstr: "invalid THERMONET_CACHE_TTL",
		},
		{
			name:        "negative retention from env",
			envVars:     map[string]string{"THERMONET_RETENTION": "-1h"},
			expectError: true,
			errorSubstr: "THERMONET_RETENTION cannot be negative",
		},
		{
			name:        "negative retention from flag",
			args:        []string{"-retention", "-1h"},
			expectError: true,
			errorSubstr: "retention cannot be negative",
		},
		{
			name:        "zero prune interval",
			args:        []string{"-prune-interval", "0s"},
			expectError: true,
			errorSubstr: "prune interval must be positive",
		},
		{
			name:        "empty addr",
			args:        []string{"-addr", " "},
			expectError: true,
			errorSubstr: "addr cannot be empty",
		},
		{
			name:        "unknown log level",
			args:        []string{"-log-level", "loud"},
			expectError: true,
			errorSubstr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != defaultAddr {
		t.Errorf("expected default addr %s, got %s", defaultAddr, cfg.Addr)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("expected default cache ttl of 24h, got %v", cfg.CacheTTL)
	}
	if cfg.Retention != 0 || cfg.RedisAddr != "" || cfg.ArtifactDir != "" {
		t.Errorf("expected optional features off by default, got %+v", cfg)
	}
	if filepath.Base(cfg.DBPath) != "thermonet.db" || !filepath.IsAbs(cfg.DBPath) {
		t.Errorf("expected absolute default db path, got %s", cfg.DBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info log level, got %v", cfg.LogLevel)
	}
}

func TestLoadConfig_EnvAndFlagPrecedence(t *testing.T) {
	t.Setenv("THERMONET_PORT", "9100")
	t.Setenv("THERMONET_REDIS_ADDR", "localhost:6379")
	t.Setenv("THERMONET_ARTIFACT_DIR", "artifacts")

	cfg, err := LoadConfig([]string{"-redis", "cache:6379"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9100" {
		t.Errorf("expected addr from THERMONET_PORT, got %s", cfg.Addr)
	}
	if cfg.RedisAddr != "cache:6379" {
		t.Errorf("expected flag to override env, got %s", cfg.RedisAddr)
	}
	if !filepath.IsAbs(cfg.ArtifactDir) || filepath.Base(cfg.ArtifactDir) != "artifacts" {
		t.Errorf("expected resolved artifact dir, got %s", cfg.ArtifactDir)
	}

	t.Setenv("THERMONET_ADDR", "0.0.0.0:8000")
	cfg, err = LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8000" {
		t.Errorf("expected THERMONET_ADDR to win over THERMONET_PORT, got %s", cfg.Addr)
	}
}
