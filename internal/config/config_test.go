package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CALL_DURATION_CEILING", "")
	t.Setenv("HOLD_DURATION_CEILING", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.CallDurationCeiling != 3*time.Minute {
		t.Fatalf("expected default call ceiling, got %s", cfg.CallDurationCeiling)
	}
	if cfg.HoldDurationCeiling != 90*time.Second {
		t.Fatalf("expected default hold ceiling, got %s", cfg.HoldDurationCeiling)
	}
	if cfg.MaxDeclines != 3 {
		t.Fatalf("expected default decline cap, got %d", cfg.MaxDeclines)
	}
	if cfg.SMSProvider != "auto" {
		t.Fatalf("expected default sms provider auto, got %s", cfg.SMSProvider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("CALL_DURATION_CEILING", "5m")
	t.Setenv("HOLD_DURATION_CEILING", "2m")
	t.Setenv("LISTEN_TIMEOUT", "10s")
	t.Setenv("RETRY_DEFAULT_DELAY", "20m")
	t.Setenv("MAX_DECLINES", "5")
	t.Setenv("SMS_PROVIDER", "Twilio ")
	t.Setenv("USE_REDIS_STORE", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.CallDurationCeiling != 5*time.Minute {
		t.Fatalf("expected call ceiling override, got %s", cfg.CallDurationCeiling)
	}
	if cfg.HoldDurationCeiling != 2*time.Minute {
		t.Fatalf("expected hold ceiling override, got %s", cfg.HoldDurationCeiling)
	}
	if cfg.ListenTimeout != 10*time.Second {
		t.Fatalf("expected listen timeout override, got %s", cfg.ListenTimeout)
	}
	if cfg.RetryDefaultDelay != 20*time.Minute {
		t.Fatalf("expected retry delay override, got %s", cfg.RetryDefaultDelay)
	}
	if cfg.MaxDeclines != 5 {
		t.Fatalf("expected decline cap override, got %d", cfg.MaxDeclines)
	}
	if cfg.SMSProvider != "twilio" {
		t.Fatalf("expected normalized sms provider, got %s", cfg.SMSProvider)
	}
	if !cfg.UseRedisStore {
		t.Fatal("expected redis store enabled")
	}
}

func TestGetEnvAsDurationInvalid(t *testing.T) {
	t.Setenv("CALL_DURATION_CEILING", "not-a-duration")
	cfg := Load()
	if cfg.CallDurationCeiling != 3*time.Minute {
		t.Fatalf("expected fallback to default, got %s", cfg.CallDurationCeiling)
	}
}
