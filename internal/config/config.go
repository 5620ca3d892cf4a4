// Package config loads runtime settings from the environment, with an optional
// .env file in the working directory.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Defaults for the upload surface and the transformation call.
const (
	DefaultPort             = 8080
	DefaultMaxUploadMB      = 4
	DefaultTransformTimeout = 120 * time.Second
	DefaultSessionTTL       = 30 * time.Minute
	DefaultProductName      = "gemini-vogue"
	DefaultImageModel       = "gemini-2.5-flash-image"
	DefaultMetricsNamespace = "GeminiVogue"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	Port             int
	ImageModel       string
	MaxUploadMB      int
	TransformTimeout time.Duration
	SessionTTL       time.Duration
	ProductName      string
	MetricsEnabled   bool
	MetricsNamespace string
	AllowedOrigins   []string

	// OriginVerifySecret, when set, must arrive in the x-origin-verify header
	// (injected by the CDN in front of the Lambda deployment).
	OriginVerifySecret string
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// Load reads .env (if present) and the process environment, applying defaults.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	cfg := &Config{
		Port:             getEnvInt("VOGUE_PORT", DefaultPort),
		ImageModel:       getEnv("GEMINI_IMAGE_MODEL", DefaultImageModel),
		MaxUploadMB:      getEnvInt("VOGUE_MAX_UPLOAD_MB", DefaultMaxUploadMB),
		TransformTimeout: getEnvDuration("VOGUE_TRANSFORM_TIMEOUT", DefaultTransformTimeout),
		SessionTTL:       getEnvDuration("VOGUE_SESSION_TTL", DefaultSessionTTL),
		ProductName:      getEnv("VOGUE_PRODUCT_NAME", DefaultProductName),
		MetricsEnabled:   getEnvBool("VOGUE_METRICS", false),
		MetricsNamespace: getEnv("VOGUE_METRICS_NAMESPACE", DefaultMetricsNamespace),
		AllowedOrigins:   getEnvList("VOGUE_ALLOWED_ORIGINS"),

		OriginVerifySecret: os.Getenv("ORIGIN_VERIFY_SECRET"),
	}

	if cfg.MaxUploadMB <= 0 {
		log.Warn().Int("value", cfg.MaxUploadMB).Msg("VOGUE_MAX_UPLOAD_MB must be positive, using default")
		cfg.MaxUploadMB = DefaultMaxUploadMB
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if d, ok := ParseDuration(v); ok {
		return d
	}
	log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration in environment, using default")
	return fallback
}

// ParseDuration accepts Go duration strings ("90s", "2m") or a bare number of
// seconds. Only positive durations are valid.
func ParseDuration(v string) (time.Duration, bool) {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
