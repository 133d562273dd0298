package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
browser:
  nav_timeout_seconds: 45
  selector_timeout_ms: 2000
ai:
  base_url: http://localhost:9999/v1
  model: local-model
  requests_per_second: 0.5
gov:
  service_key: abc
  page_size: 20
  max_pages: 3
store:
  provider: sqlite
  sqlite_path: /tmp/courses.db
pipeline:
  site_delay_ms: 1500
  sites_file: sites.yaml
archive:
  provider: local
  local_dir: /tmp/archive
http:
  timeout_seconds: 45
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
	if cfg.Browser.NavTimeoutSec != 45 || cfg.Browser.SelectorTimeoutMs != 2000 {
		t.Fatalf("expected browser overrides to apply: %+v", cfg.Browser)
	}
	if cfg.Browser.ClickTimeoutMs != 5000 {
		t.Fatalf("expected default click timeout, got %d", cfg.Browser.ClickTimeoutMs)
	}
	if cfg.AI.Model != "local-model" || cfg.AI.RequestsPerSecond != 0.5 {
		t.Fatalf("expected ai overrides to apply: %+v", cfg.AI)
	}
	if cfg.Gov.PageSize != 20 || cfg.Gov.MaxPages != 3 || cfg.Gov.ServiceKey != "abc" {
		t.Fatalf("expected gov overrides to apply: %+v", cfg.Gov)
	}
	if cfg.Store.Provider != "sqlite" || cfg.Store.Table != "courses" {
		t.Fatalf("expected store overrides with default table: %+v", cfg.Store)
	}
	if got := cfg.SiteDelay(); got != 1500*time.Millisecond {
		t.Fatalf("expected site delay 1.5s, got %v", got)
	}
	if got := cfg.HTTPTimeout(); got != 45*time.Second {
		t.Fatalf("expected http timeout 45s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Provider != "memory" || cfg.Archive.Provider != "none" || cfg.Alert.Provider != "none" {
		t.Fatalf("unexpected provider defaults: %+v %+v %+v", cfg.Store, cfg.Archive, cfg.Alert)
	}
	if cfg.Gov.PageSize != 100 || cfg.Store.UpsertAttempts != 3 {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Gov, cfg.Store)
	}
	if cfg.AITimeout() != 90*time.Second {
		t.Fatalf("unexpected ai timeout %v", cfg.AITimeout())
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Browser:  BrowserConfig{NavTimeoutSec: 10, SelectorTimeoutMs: 100, NetworkIdleMs: 100},
		AI:       AIConfig{TimeoutSeconds: 10, RequestsPerSecond: 1},
		Gov:      GovConfig{Enabled: true, PageSize: 10, MaxPages: 1},
		Store:    StoreConfig{Provider: "memory", UpsertAttempts: 1},
		Archive:  ArchiveConfig{Provider: "none"},
		Alert:    AlertConfig{Provider: "none"},
		HTTP:     HTTPConfig{TimeoutSeconds: 10},
		Pipeline: PipelineConfig{SiteDelayMs: 0},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"nav timeout", func(c *Config) { c.Browser.NavTimeoutSec = 0 }, "browser.nav_timeout_seconds"},
		{"selector timeout", func(c *Config) { c.Browser.SelectorTimeoutMs = 0 }, "browser wait timeouts"},
		{"ai rate", func(c *Config) { c.AI.RequestsPerSecond = 0 }, "ai.requests_per_second"},
		{"gov page size", func(c *Config) { c.Gov.PageSize = 0 }, "gov.page_size"},
		{"gov max pages", func(c *Config) { c.Gov.MaxPages = 0 }, "gov.max_pages"},
		{"postgres dsn", func(c *Config) { c.Store.Provider = "postgres" }, "store.dsn"},
		{"supabase creds", func(c *Config) { c.Store.Provider = "supabase" }, "store.supabase_url"},
		{"unknown store", func(c *Config) { c.Store.Provider = "mongo" }, "not supported"},
		{"gcs bucket", func(c *Config) { c.Archive.Provider = "gcs" }, "archive.gcs_bucket"},
		{"pubsub project", func(c *Config) { c.Alert.Provider = "pubsub" }, "alert.project_id"},
		{"attempts", func(c *Config) { c.Store.UpsertAttempts = 0 }, "store.upsert_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestGovDisabledSkipsGovValidation(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Browser: BrowserConfig{NavTimeoutSec: 10, SelectorTimeoutMs: 100, NetworkIdleMs: 100},
		AI:      AIConfig{TimeoutSeconds: 10, RequestsPerSecond: 1},
		Store:   StoreConfig{Provider: "memory", UpsertAttempts: 1},
		Archive: ArchiveConfig{Provider: "none"},
		Alert:   AlertConfig{Provider: "none"},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled gov to skip validation: %v", err)
	}
}
