/*
Package configs is responsible for loading and parsing the application's configuration settings.

Settings are read from operating system environment variables (and an optional .env file) through viper,
covering the running environment, port, CORS allowed origins, session signing secret and the timing
parameters of the presence and broadcast core.
*/
package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        int    `mapstructure:"PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Security Settings
	AllowedOrigins []string      `mapstructure:"-"`
	SessionSecret  string        `mapstructure:"SESSION_SECRET"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`

	// Presence and Broadcast Settings
	InactivityTimeout time.Duration `mapstructure:"INACTIVITY_TIMEOUT"`
	SweepInterval     time.Duration `mapstructure:"SWEEP_INTERVAL"`
	PublishTimeout    time.Duration `mapstructure:"PUBLISH_TIMEOUT"`
	SubscriberBuffer  int           `mapstructure:"SUBSCRIBER_BUFFER"`
	MaxContentBytes   int           `mapstructure:"MAX_CONTENT_BYTES"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables.
// Missing values fall back to defaults; values that would leave the server in an unusable
// state are rejected with an error.
func LoadConfig() (*AppConfig, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("INACTIVITY_TIMEOUT", 300*time.Second)
	v.SetDefault("SWEEP_INTERVAL", 30*time.Second)
	v.SetDefault("PUBLISH_TIMEOUT", 2*time.Second)
	v.SetDefault("SUBSCRIBER_BUFFER", 16)
	v.SetDefault("MAX_CONTENT_BYTES", 5000)

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// --- General Server Settings ---
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(v.GetString("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("SESSION_SECRET environment variable is required in %s environment", cfg.Environment)
		}
		cfg.SessionSecret = "insecure_development_session_secret"
	}

	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}

	// --- Presence and Broadcast Settings ---
	if cfg.InactivityTimeout <= 0 {
		return nil, fmt.Errorf("INACTIVITY_TIMEOUT must be positive, got %s", cfg.InactivityTimeout)
	}

	if cfg.SweepInterval <= 0 || cfg.SweepInterval > cfg.InactivityTimeout {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be in (0, %s], got %s", cfg.InactivityTimeout, cfg.SweepInterval)
	}

	if cfg.PublishTimeout <= 0 {
		return nil, fmt.Errorf("PUBLISH_TIMEOUT must be positive, got %s", cfg.PublishTimeout)
	}

	if cfg.SubscriberBuffer <= 0 {
		return nil, fmt.Errorf("SUBSCRIBER_BUFFER must be positive, got %d", cfg.SubscriberBuffer)
	}

	if cfg.MaxContentBytes <= 0 {
		return nil, fmt.Errorf("MAX_CONTENT_BYTES must be positive, got %d", cfg.MaxContentBytes)
	}

	return cfg, nil
}
