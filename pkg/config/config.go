package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harunnryd/voskstream/pkg/configutil"
	"github.com/harunnryd/voskstream/pkg/errorsx"
)

// EnvPrefix prefixes environment overrides, e.g. VOSK_ENDPOINT or VOSK_RETRY_MAX_RETRIES.
const EnvPrefix = "VOSK"

type Config struct {
	Endpoint         string          `mapstructure:"endpoint"`
	Endpoints        []string        `mapstructure:"endpoints"`
	ReceiveTimeoutMS int             `mapstructure:"receive_timeout_ms"`
	LogLevel         string          `mapstructure:"log_level"`
	LogFormat        string          `mapstructure:"log_format"`
	ShowBanner       bool            `mapstructure:"show_banner"`
	Transport        TransportConfig `mapstructure:"transport"`
	Retry            RetryConfig     `mapstructure:"retry"`
	Metrics          MetricsConfig   `mapstructure:"metrics"`
	History          HistoryConfig   `mapstructure:"history"`
	Publish          PublishConfig   `mapstructure:"publish"`
	Telemetry        TelemetryConfig `mapstructure:"telemetry"`
	Privacy          PrivacyConfig   `mapstructure:"privacy"`
}

type TransportConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type RetryConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
	BackoffMS  int `mapstructure:"backoff_ms"`
	// BreakerThreshold consecutive connection failures stop dialing an endpoint for
	// BreakerCooldownMS. Zero disables the breaker.
	BreakerThreshold  int `mapstructure:"breaker_threshold"`
	BreakerCooldownMS int `mapstructure:"breaker_cooldown_ms"`
}

type MetricsConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Buffer     int     `mapstructure:"buffer"`
	// TimelineDir receives one JSONL file per run when set.
	TimelineDir            string `mapstructure:"timeline_dir"`
	TimelineRetentionHours int    `mapstructure:"timeline_retention_hours"`
}

type HistoryConfig struct {
	Path    string `mapstructure:"path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

type PublishConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TraceStdout bool   `mapstructure:"trace_stdout"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "ws://localhost:2700")
	v.SetDefault("endpoints", []string{})
	v.SetDefault("receive_timeout_ms", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("show_banner", false)
	v.SetDefault("transport.provider", "websocket")
	v.SetDefault("transport.settings", map[string]any{})
	v.SetDefault("retry.max_retries", 0)
	v.SetDefault("retry.backoff_ms", 500)
	v.SetDefault("retry.breaker_threshold", 0)
	v.SetDefault("retry.breaker_cooldown_ms", 30000)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.sample_rate", 1.0)
	v.SetDefault("metrics.buffer", 256)
	v.SetDefault("metrics.timeline_dir", "")
	v.SetDefault("metrics.timeline_retention_hours", 168)
	v.SetDefault("history.path", "")
	v.SetDefault("history.max_runs", 1000)
	v.SetDefault("publish.nats_url", "")
	v.SetDefault("publish.subject_prefix", "vosk.transcripts")
	v.SetDefault("telemetry.service_name", "voskstream")
	v.SetDefault("telemetry.trace_stdout", false)
	v.SetDefault("privacy.redact_pii", true)
}

// LoadConfig reads defaults, then the optional file at path, then VOSK_* environment
// variables. ${VAR} references in string values are expanded.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsx.Wrap(fmt.Errorf("read config: %w", err), errorsx.ReasonConfigInvalid)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("unmarshal config: %w", err), errorsx.ReasonConfigInvalid)
	}
	expandValue(reflect.ValueOf(&cfg))
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)

	if err := cfg.Validate(); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("validate config: %w", err), errorsx.ReasonConfigInvalid)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validateEndpoint("endpoint", c.Endpoint); err != nil {
		return err
	}
	for i, ep := range c.Endpoints {
		if err := validateEndpoint(fmt.Sprintf("endpoints[%d]", i), ep); err != nil {
			return err
		}
	}
	if err := configutil.RequireString(c.Transport.Provider, "transport.provider"); err != nil {
		return err
	}
	if c.ReceiveTimeoutMS < 0 {
		return fmt.Errorf("receive_timeout_ms must be >= 0")
	}
	if c.Retry.MaxRetries < 0 || c.Retry.BackoffMS < 0 {
		return fmt.Errorf("retry.max_retries and retry.backoff_ms must be >= 0")
	}
	if c.Retry.BreakerThreshold < 0 || c.Retry.BreakerCooldownMS < 0 {
		return fmt.Errorf("retry.breaker_threshold and retry.breaker_cooldown_ms must be >= 0")
	}
	if c.Metrics.SampleRate < 0 || c.Metrics.SampleRate > 1 {
		return fmt.Errorf("metrics.sample_rate must be within [0, 1]")
	}
	if c.Metrics.TimelineRetentionHours < 0 {
		return fmt.Errorf("metrics.timeline_retention_hours must be >= 0")
	}
	if c.History.MaxRuns < 0 {
		return fmt.Errorf("history.max_runs must be >= 0")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func (c Config) ReceiveTimeout() time.Duration { return configutil.Millis(c.ReceiveTimeoutMS) }
func (c Config) RetryBackoff() time.Duration   { return configutil.Millis(c.Retry.BackoffMS) }
func (c Config) BreakerCooldown() time.Duration {
	return configutil.Millis(c.Retry.BreakerCooldownMS)
}

// RecognizerEndpoints returns the configured endpoint list, falling back to Endpoint.
func (c Config) RecognizerEndpoints() []string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	return []string{c.Endpoint}
}

func validateEndpoint(field, raw string) error {
	if err := configutil.RequireString(raw, field); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s must use ws:// or wss://, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}

func expandSettings(settings map[string]any) map[string]any {
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		return expandSettings(val)
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
