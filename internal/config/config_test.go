package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected address %q", cfg.HTTPAddress)
	}
	if cfg.SessionCookieName != "session_token" {
		t.Fatalf("unexpected cookie name %q", cfg.SessionCookieName)
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Fatalf("unexpected session ttl %s", cfg.SessionTTL)
	}
	if cfg.IdentityTimeout != 10*time.Second {
		t.Fatalf("unexpected identity timeout %s", cfg.IdentityTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.SessionSigningSecret != "" {
		t.Fatalf("expected minting to be disabled by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("METROMATE_SESSION_TTL", "48h")
	t.Setenv("METROMATE_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("METROMATE_RATELIMIT_BURST", "3")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.SessionTTL != 48*time.Hour {
		t.Fatalf("unexpected session ttl %s", cfg.SessionTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.RateLimitBurst != 3 {
		t.Fatalf("unexpected burst %d", cfg.RateLimitBurst)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value any
	}{
		{name: "empty-database", key: "database.path", value: " "},
		{name: "empty-cookie", key: "session.cookie_name", value: ""},
		{name: "zero-ttl", key: "session.ttl", value: time.Duration(0)},
		{name: "empty-identity-url", key: "identity.session_data_url", value: ""},
		{name: "no-origins", key: "cors.allowed_origins", value: " , "},
		{name: "negative-rate", key: "ratelimit.requests_per_second", value: -1.0},
		{name: "sample-ratio", key: "tracing.sample_ratio", value: 1.5},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(testCase.key, testCase.value)
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error for %s", testCase.key)
			}
		})
	}
}
