package configutil

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type sampleSettings struct {
	HandshakeTimeoutMS int               `mapstructure:"handshake_timeout_ms"`
	ReadLimit          int64             `mapstructure:"read_limit_bytes"`
	Compression        bool              `mapstructure:"compression"`
	Headers            map[string]string `mapstructure:"headers"`
	Grace              time.Duration     `mapstructure:"grace"`
}

func TestDecodeSettingsNormalizesKeys(t *testing.T) {
	in := map[string]any{
		"Handshake-Timeout-MS": "1500",
		"read_limit_bytes":     4096,
		"COMPRESSION":          "true",
		"headers":              map[string]any{"Authorization": "Bearer x"},
		"grace":                "250ms",
	}
	var out sampleSettings
	if err := DecodeSettings(in, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.HandshakeTimeoutMS != 1500 || out.ReadLimit != 4096 || !out.Compression {
		t.Fatalf("unexpected decode: %+v", out)
	}
	if out.Headers["Authorization"] != "Bearer x" {
		t.Fatalf("expected header, got %v", out.Headers)
	}
	if out.Grace != 250*time.Millisecond {
		t.Fatalf("expected 250ms grace, got %s", out.Grace)
	}
}

func TestDecodeSettingsEmptyIsNoop(t *testing.T) {
	out := sampleSettings{ReadLimit: 7}
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ReadLimit != 7 {
		t.Fatalf("expected untouched struct")
	}
}

func TestSchemaReportsMissingAndUnknown(t *testing.T) {
	schema := Schema{
		Required: []string{"url", "token"},
		Optional: []string{"headers"},
	}
	err := schema.Validate(map[string]any{"url": " ", "colour": "red", "Headers": map[string]any{}})
	var serr *SettingsError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SettingsError, got %v", err)
	}
	if strings.Join(serr.Missing, ",") != "token,url" || strings.Join(serr.Unknown, ",") != "colour" {
		t.Fatalf("unexpected report %+v", serr)
	}
	if msg := err.Error(); msg != "missing: token, url; unknown: colour" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestSchemaAcceptsNormalizedKeys(t *testing.T) {
	schema := Schema{Required: []string{"read_limit_bytes"}}
	if err := schema.Validate(map[string]any{"Read-Limit-Bytes": 10}); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	loose := Schema{AllowUnknown: true}
	if err := loose.Validate(map[string]any{"anything": 1}); err != nil {
		t.Fatalf("unknown keys should be allowed, got %v", err)
	}
}

func TestMillis(t *testing.T) {
	if Millis(0) != 0 || Millis(-5) != 0 {
		t.Fatalf("expected zero for non-positive input")
	}
	if Millis(1200) != 1200*time.Millisecond {
		t.Fatalf("unexpected conversion")
	}
}
