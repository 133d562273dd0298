// Package config loads and validates ingestion configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	AI       AIConfig       `mapstructure:"ai"`
	Gov      GovConfig      `mapstructure:"gov"`
	Store    StoreConfig    `mapstructure:"store"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BrowserConfig bounds every headless browser wait.
type BrowserConfig struct {
	Headless           bool   `mapstructure:"headless"`
	UserAgent          string `mapstructure:"user_agent"`
	WindowWidth        int    `mapstructure:"window_width"`
	WindowHeight       int    `mapstructure:"window_height"`
	NavTimeoutSec      int    `mapstructure:"nav_timeout_seconds"`
	SelectorTimeoutMs  int    `mapstructure:"selector_timeout_ms"`
	ClickTimeoutMs     int    `mapstructure:"click_timeout_ms"`
	PopupTimeoutMs     int    `mapstructure:"popup_timeout_ms"`
	NetworkIdleMs      int    `mapstructure:"network_idle_ms"`
	NetworkIdleQuietMs int    `mapstructure:"network_idle_quiet_ms"`
}

// AIConfig points at an OpenAI-compatible chat completions endpoint.
type AIConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	VisionModel       string  `mapstructure:"vision_model"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxRetries        int     `mapstructure:"max_retries"`
}

// GovConfig configures the government open-data XML API.
type GovConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BaseURL    string `mapstructure:"base_url"`
	Operation  string `mapstructure:"operation"`
	ServiceKey string `mapstructure:"service_key"`
	PageSize   int    `mapstructure:"page_size"`
	MaxPages   int    `mapstructure:"max_pages"`
	Region     string `mapstructure:"region"`
}

// StoreConfig selects the course store backend.
type StoreConfig struct {
	Provider       string `mapstructure:"provider"`
	DSN            string `mapstructure:"dsn"`
	Table          string `mapstructure:"table"`
	SupabaseURL    string `mapstructure:"supabase_url"`
	SupabaseKey    string `mapstructure:"supabase_key"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	UpsertAttempts int    `mapstructure:"upsert_attempts"`
}

// PipelineConfig controls the orchestrator loop.
type PipelineConfig struct {
	SiteDelayMs int    `mapstructure:"site_delay_ms"`
	SitesFile   string `mapstructure:"sites_file"`
	MaxPages    int    `mapstructure:"max_pages"`
}

// ArchiveConfig sets where screenshots and prompt text are archived for audit.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// AlertConfig holds the publish target for the new-course trigger.
type AlertConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Prometheus endpoint and optional push.
type MetricsConfig struct {
	Addr    string `mapstructure:"addr"`
	PushURL string `mapstructure:"push_url"`
	Job     string `mapstructure:"job"`
}

// HTTPConfig configures plain HTTP clients (government API, image fetches).
type HTTPConfig struct {
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	UserAgent        string  `mapstructure:"user_agent"`
	HostRPS          float64 `mapstructure:"host_rps"`
}

// TracingConfig controls OpenTelemetry spans. ProjectID enables export to
// Cloud Trace.
type TracingConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Version     string  `mapstructure:"version"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COURSEINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 2000)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.selector_timeout_ms", 10000)
	v.SetDefault("browser.click_timeout_ms", 5000)
	v.SetDefault("browser.popup_timeout_ms", 3000)
	v.SetDefault("browser.network_idle_ms", 8000)
	v.SetDefault("browser.network_idle_quiet_ms", 500)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.vision_model", "gpt-4o-mini")
	v.SetDefault("ai.timeout_seconds", 90)
	v.SetDefault("ai.requests_per_second", 1.0)
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("gov.enabled", true)
	v.SetDefault("gov.base_url", "http://api.data.go.kr/openapi")
	v.SetDefault("gov.operation", "tn_pubr_public_lftm_lrn_lctre_api")
	v.SetDefault("gov.page_size", 100)
	v.SetDefault("gov.max_pages", 50)
	v.SetDefault("gov.region", "서울특별시")
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.table", "courses")
	v.SetDefault("store.sqlite_path", "courses.db")
	v.SetDefault("store.upsert_attempts", 3)
	v.SetDefault("pipeline.site_delay_ms", 3000)
	v.SetDefault("pipeline.max_pages", 10)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.local_dir", "archive")
	v.SetDefault("archive.prefix", "runs")
	v.SetDefault("alert.provider", "none")
	v.SetDefault("alert.topic_name", "new-courses")
	v.SetDefault("metrics.job", "course-ingest")
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("http.user_agent", "course-ingest/0.1")
	v.SetDefault("http.host_rps", 2.0)
	v.SetDefault("tracing.service_name", "course-ingest")
	v.SetDefault("tracing.version", "0.1.0")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.SelectorTimeoutMs <= 0 || c.Browser.NetworkIdleMs <= 0 {
		return fmt.Errorf("browser wait timeouts must be > 0")
	}
	if c.AI.TimeoutSeconds <= 0 {
		return fmt.Errorf("ai.timeout_seconds must be > 0")
	}
	if c.AI.RequestsPerSecond <= 0 {
		return fmt.Errorf("ai.requests_per_second must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Gov.Enabled {
		if c.Gov.PageSize <= 0 {
			return fmt.Errorf("gov.page_size must be > 0")
		}
		if c.Gov.MaxPages <= 0 {
			return fmt.Errorf("gov.max_pages must be > 0")
		}
	}
	if c.Store.UpsertAttempts <= 0 {
		return fmt.Errorf("store.upsert_attempts must be > 0")
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres provider")
		}
	case "supabase":
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			return fmt.Errorf("store.supabase_url and store.supabase_key must be set for the supabase provider")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path must be set for the sqlite provider")
		}
	default:
		return fmt.Errorf("store.provider %q is not supported", c.Store.Provider)
	}
	switch c.Archive.Provider {
	case "none", "memory", "local":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider %q is not supported", c.Archive.Provider)
	}
	switch c.Alert.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Alert.ProjectID == "" || c.Alert.TopicName == "" {
			return fmt.Errorf("alert.project_id and alert.topic_name must be set for pubsub")
		}
	default:
		return fmt.Errorf("alert.provider %q is not supported", c.Alert.Provider)
	}
	return nil
}

// SiteDelay is the fixed pause between consecutive site drivers.
func (c Config) SiteDelay() time.Duration {
	return time.Duration(c.Pipeline.SiteDelayMs) * time.Millisecond
}

// HTTPTimeout converts the HTTP timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// AITimeout converts the AI request timeout to a duration.
func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}
