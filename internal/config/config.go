package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "METROMATE"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "metromate.db"
	defaultLogLevel        = "info"
	defaultSessionDataURL  = "https://demobackend.emergentagent.com/auth/v1/env/oauth/session-data"
	defaultIdentityTimeout = 10 * time.Second
	defaultCookieName      = "session_token"
	defaultSessionTTL      = 7 * 24 * time.Hour
	defaultAllowedOrigins  = "*"
	defaultRatePerSecond   = 5.0
	defaultRateBurst       = 20
	defaultSampleRatio     = 1.0
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string
	DatabasePath         string
	LogLevel             string
	IdentitySessionURL   string
	IdentityTimeout      time.Duration
	SessionCookieName    string
	SessionTTL           time.Duration
	SessionSigningSecret string
	AllowedOrigins       []string
	RateLimitPerSecond   float64
	RateLimitBurst       int
	TracingOTLPEndpoint  string
	TracingSampleRatio   float64
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("identity.session_data_url", defaultSessionDataURL)
	configViper.SetDefault("identity.timeout", defaultIdentityTimeout)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl", defaultSessionTTL)
	configViper.SetDefault("session.signing_secret", "")
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOrigins)
	configViper.SetDefault("ratelimit.requests_per_second", defaultRatePerSecond)
	configViper.SetDefault("ratelimit.burst", defaultRateBurst)
	configViper.SetDefault("tracing.otlp_endpoint", "")
	configViper.SetDefault("tracing.sample_ratio", defaultSampleRatio)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		IdentitySessionURL:   configViper.GetString("identity.session_data_url"),
		IdentityTimeout:      configViper.GetDuration("identity.timeout"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SessionTTL:           configViper.GetDuration("session.ttl"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		AllowedOrigins:       splitList(configViper.GetString("cors.allowed_origins")),
		RateLimitPerSecond:   configViper.GetFloat64("ratelimit.requests_per_second"),
		RateLimitBurst:       configViper.GetInt("ratelimit.burst"),
		TracingOTLPEndpoint:  strings.TrimSpace(configViper.GetString("tracing.otlp_endpoint")),
		TracingSampleRatio:   configViper.GetFloat64("tracing.sample_ratio"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.IdentitySessionURL) == "" {
		return fmt.Errorf("identity.session_data_url is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins is required")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("ratelimit.requests_per_second and ratelimit.burst must be positive")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
