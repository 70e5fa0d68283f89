package configs

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.IsDevelopment() {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.InactivityTimeout != 300*time.Second {
		t.Errorf("InactivityTimeout = %s, want 5m0s", cfg.InactivityTimeout)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %s, want 30s", cfg.SweepInterval)
	}
	if cfg.PublishTimeout != 2*time.Second {
		t.Errorf("PublishTimeout = %s, want 2s", cfg.PublishTimeout)
	}
	if cfg.SubscriberBuffer != 16 {
		t.Errorf("SubscriberBuffer = %d, want 16", cfg.SubscriberBuffer)
	}
	if cfg.MaxContentBytes != 5000 {
		t.Errorf("MaxContentBytes = %d, want 5000", cfg.MaxContentBytes)
	}
	if cfg.SessionSecret == "" {
		t.Error("SessionSecret should fall back to a development secret")
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v, want empty", cfg.AllowedOrigins)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("INACTIVITY_TIMEOUT", "10m")
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("PUBLISH_TIMEOUT", "500ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.SessionSecret != "s3cret" {
		t.Errorf("SessionSecret = %q, want %q", cfg.SessionSecret, "s3cret")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.InactivityTimeout != 10*time.Minute {
		t.Errorf("InactivityTimeout = %s, want 10m0s", cfg.InactivityTimeout)
	}
	if cfg.PublishTimeout != 500*time.Millisecond {
		t.Errorf("PublishTimeout = %s, want 500ms", cfg.PublishTimeout)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"privileged port", map[string]string{"PORT": "80"}},
		{"missing secret in production", map[string]string{"ENVIRONMENT": "production", "SESSION_SECRET": ""}},
		{"sweep longer than window", map[string]string{"INACTIVITY_TIMEOUT": "1m", "SWEEP_INTERVAL": "2m"}},
		{"negative buffer", map[string]string{"SUBSCRIBER_BUFFER": "-1"}},
		{"zero content limit", map[string]string{"MAX_CONTENT_BYTES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "development")
			t.Setenv("PORT", "8080")
			for k, val := range tt.env {
				t.Setenv(k, val)
			}

			if _, err := LoadConfig(); err == nil {
				t.Error("LoadConfig should fail")
			}
		})
	}
}
