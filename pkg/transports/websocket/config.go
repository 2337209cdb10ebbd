package websocket

import (
	"fmt"
	"net/http"
	"time"

	"github.com/harunnryd/voskstream/pkg/configutil"
)

// ProviderName is the registry key for this transport.
const ProviderName = "websocket"

// Config controls dialing and per-connection limits.
type Config struct {
	HandshakeTimeout  time.Duration     `mapstructure:"handshake_timeout"`
	WriteTimeout      time.Duration     `mapstructure:"write_timeout"`
	ReadLimit         int64             `mapstructure:"read_limit_bytes"`
	EnableCompression bool              `mapstructure:"compression"`
	Headers           map[string]string `mapstructure:"headers"`
}

var settingsSchema = configutil.Schema{
	Optional: []string{"handshake_timeout", "write_timeout", "read_limit_bytes", "compression", "headers"},
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

// ConfigFromSettings decodes free-form provider settings.
func ConfigFromSettings(settings map[string]any) (Config, error) {
	var cfg Config
	if err := settingsSchema.Validate(settings); err != nil {
		return cfg, fmt.Errorf("websocket settings: %w", err)
	}
	if err := configutil.DecodeSettings(settings, &cfg); err != nil {
		return cfg, fmt.Errorf("websocket settings: %w", err)
	}
	if cfg.ReadLimit < 0 {
		return cfg, fmt.Errorf("websocket settings: read_limit_bytes must be >= 0")
	}
	return cfg.withDefaults(), nil
}

func (c Config) header() http.Header {
	if len(c.Headers) == 0 {
		return nil
	}
	h := http.Header{}
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}
