package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PREDICTOR_URL", "")
	t.Setenv("POLL_INTERVAL_MS", "")
	t.Setenv("POLL_MAX_INTERVAL_MS", "")
	t.Setenv("POLL_TIMEOUT_SECONDS", "")
	t.Setenv("OUTPUT_OVERFLOW", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PredictorURL != "http://0.0.0.0:5000" {
		t.Fatalf("PredictorURL mismatch: got %q", cfg.PredictorURL)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("PollInterval mismatch: got %s want 1s", cfg.PollInterval)
	}
	if cfg.PollMaxInterval != time.Second {
		t.Fatalf("PollMaxInterval mismatch: got %s want 1s", cfg.PollMaxInterval)
	}
	if cfg.PollTimeout != 10*time.Minute {
		t.Fatalf("PollTimeout mismatch: got %s", cfg.PollTimeout)
	}
	if cfg.OutputOverflow != "drop" {
		t.Fatalf("OutputOverflow mismatch: got %q", cfg.OutputOverflow)
	}
	if cfg.HistoryEnabled() {
		t.Fatalf("history should be disabled without DATABASE_URL")
	}
}

func TestLoadConfigTrimsPredictorURL(t *testing.T) {
	t.Setenv("PREDICTOR_URL", "http://cog:5000/")
	t.Setenv("PUBLIC_ORIGIN", "https://panel.example.com/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PredictorURL != "http://cog:5000" {
		t.Fatalf("PredictorURL mismatch: got %q", cfg.PredictorURL)
	}
	if cfg.PublicOrigin != "https://panel.example.com" {
		t.Fatalf("PublicOrigin mismatch: got %q", cfg.PublicOrigin)
	}
}

func TestLoadConfigClampsPollSettings(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "500")
	t.Setenv("POLL_MAX_INTERVAL_MS", "100")
	t.Setenv("POLL_BACKOFF", "0.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollMaxInterval != 500*time.Millisecond {
		t.Fatalf("PollMaxInterval mismatch: got %s", cfg.PollMaxInterval)
	}
	if cfg.PollBackoff != 1 {
		t.Fatalf("PollBackoff mismatch: got %v", cfg.PollBackoff)
	}
}

func TestLoadConfigRejectsUnknownOverflow(t *testing.T) {
	t.Setenv("OUTPUT_OVERFLOW", "explode")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown OUTPUT_OVERFLOW")
	}
}

func TestLoadConfigParsesCORSList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com ")
	t.Setenv("DATABASE_URL", "postgres://example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
	if !cfg.HistoryEnabled() {
		t.Fatalf("history should be enabled with DATABASE_URL")
	}
}

func TestLoadConfigRejectsNonPositivePollTimeout(t *testing.T) {
	for _, v := range []string{"0", "-5"} {
		t.Setenv("POLL_TIMEOUT_SECONDS", v)
		if _, err := LoadConfig(); err == nil {
			t.Fatalf("POLL_TIMEOUT_SECONDS=%s: expected error", v)
		}
	}
}
