package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	PredictorURL       string
	PublicOrigin       string
	StoragePath        string
	DatabaseURL        string
	GeoIPDBPath        string
	DefaultLocale      string
	PollInterval       time.Duration
	PollMaxInterval    time.Duration
	PollBackoff        float64
	PollTimeout        time.Duration
	OutputOverflow     string
	PersistOutputs     bool
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "7860"),
		PredictorURL:       strings.TrimRight(getEnv("PREDICTOR_URL", "http://0.0.0.0:5000"), "/"),
		PublicOrigin:       strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_ORIGIN")), "/"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		GeoIPDBPath:        strings.TrimSpace(os.Getenv("GEOIP_DB_PATH")),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		PollInterval:       time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)),
		PollBackoff:        getEnvFloat("POLL_BACKOFF", 1),
		PollTimeout:        time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 600)),
		OutputOverflow:     strings.ToLower(getEnv("OUTPUT_OVERFLOW", "drop")),
		PersistOutputs:     getEnvBool("PERSIST_OUTPUTS", false),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 660)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}
	cfg.PollMaxInterval = time.Millisecond * time.Duration(getEnvInt("POLL_MAX_INTERVAL_MS", int(cfg.PollInterval/time.Millisecond)))

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("POLL_TIMEOUT_SECONDS must be positive")
	}
	if cfg.PollBackoff < 1 {
		cfg.PollBackoff = 1
	}
	if cfg.PollMaxInterval < cfg.PollInterval {
		cfg.PollMaxInterval = cfg.PollInterval
	}
	switch cfg.OutputOverflow {
	case "drop", "append":
	default:
		return nil, fmt.Errorf("OUTPUT_OVERFLOW must be drop or append, got %q", cfg.OutputOverflow)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}

	return cfg, nil
}

// HistoryEnabled reports whether prediction runs should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c != nil && c.DatabaseURL != ""
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
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
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

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
