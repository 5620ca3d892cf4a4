package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"VOGUE_PORT", "GEMINI_IMAGE_MODEL", "VOGUE_MAX_UPLOAD_MB", "VOGUE_TRANSFORM_TIMEOUT",
		"VOGUE_SESSION_TTL", "VOGUE_PRODUCT_NAME", "VOGUE_METRICS", "VOGUE_METRICS_NAMESPACE",
		"VOGUE_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.ImageModel != DefaultImageModel {
		t.Errorf("expected model %q, got %q", DefaultImageModel, cfg.ImageModel)
	}
	if cfg.MaxUploadBytes() != 4*1024*1024 {
		t.Errorf("expected 4 MB limit, got %d", cfg.MaxUploadBytes())
	}
	if cfg.TransformTimeout != DefaultTransformTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTransformTimeout, cfg.TransformTimeout)
	}
	if cfg.ProductName != "gemini-vogue" {
		t.Errorf("expected product name gemini-vogue, got %q", cfg.ProductName)
	}
	if cfg.MetricsEnabled {
		t.Error("metrics should be disabled by default")
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("expected no allowed origins, got %v", cfg.AllowedOrigins)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("VOGUE_PORT", "9090")
	t.Setenv("GEMINI_IMAGE_MODEL", "gemini-3-pro-image-preview")
	t.Setenv("VOGUE_MAX_UPLOAD_MB", "8")
	t.Setenv("VOGUE_TRANSFORM_TIMEOUT", "45")
	t.Setenv("VOGUE_SESSION_TTL", "5m")
	t.Setenv("VOGUE_METRICS", "true")
	t.Setenv("VOGUE_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := FromEnv()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.ImageModel != "gemini-3-pro-image-preview" {
		t.Errorf("unexpected model %q", cfg.ImageModel)
	}
	if cfg.MaxUploadBytes() != 8*1024*1024 {
		t.Errorf("expected 8 MB limit, got %d", cfg.MaxUploadBytes())
	}
	if cfg.TransformTimeout != 45*time.Second {
		t.Errorf("expected bare seconds to parse, got %v", cfg.TransformTimeout)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("expected 5m TTL, got %v", cfg.SessionTTL)
	}
	if !cfg.MetricsEnabled {
		t.Error("expected metrics enabled")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("VOGUE_PORT", "eighty")
	t.Setenv("VOGUE_MAX_UPLOAD_MB", "-1")
	t.Setenv("VOGUE_TRANSFORM_TIMEOUT", "soon")

	cfg := FromEnv()

	if cfg.Port != DefaultPort {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
	if cfg.MaxUploadMB != DefaultMaxUploadMB {
		t.Errorf("expected default upload limit, got %d", cfg.MaxUploadMB)
	}
	if cfg.TransformTimeout != DefaultTransformTimeout {
		t.Errorf("expected default timeout, got %v", cfg.TransformTimeout)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"90s", 90 * time.Second, true},
		{"2m", 2 * time.Minute, true},
		{"30", 30 * time.Second, true},
		{"0", 0, false},
		{"-5s", 0, false},
		{"later", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDuration(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOriginVerifySecret(t *testing.T) {
	t.Setenv("ORIGIN_VERIFY_SECRET", "s3cret")
	if got := FromEnv().OriginVerifySecret; got != "s3cret" {
		t.Errorf("expected secret from environment, got %q", got)
	}
}
