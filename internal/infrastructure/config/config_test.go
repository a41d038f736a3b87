package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a config file into a temp dir and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

const validConfig = `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 3000
broker:
  host: "mqtt.example.org"
  port: 8883
  topic_prefix: "pico"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
  system:
    username: "telegraf"
    api_key: "telegraf-shared-secret"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Broker.Host != "mqtt.example.org" {
		t.Errorf("Broker.Host = %q, want %q", cfg.Broker.Host, "mqtt.example.org")
	}
	if cfg.Broker.TopicPrefix != "pico" {
		t.Errorf("Broker.TopicPrefix = %q, want %q", cfg.Broker.TopicPrefix, "pico")
	}
	if cfg.Security.System.Username != "telegraf" {
		t.Errorf("System.Username = %q, want %q", cfg.Security.System.Username, "telegraf")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Security.JWT.AccessTokenTTL != 60 {
		t.Errorf("AccessTokenTTL = %d, want 60", cfg.Security.JWT.AccessTokenTTL)
	}
	if cfg.Security.JWT.RefreshTokenTTL != 10080 {
		t.Errorf("RefreshTokenTTL = %d, want 10080", cfg.Security.JWT.RefreshTokenTTL)
	}
	if cfg.Maintenance.SweepInterval != 60 {
		t.Errorf("SweepInterval = %d, want 60", cfg.Maintenance.SweepInterval)
	}
	if cfg.Maintenance.InactiveThreshold != 5 {
		t.Errorf("InactiveThreshold = %d, want 5", cfg.Maintenance.InactiveThreshold)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("IOTHINK_JWT_SECRET", "env-override-secret-at-least-32-chars")
	t.Setenv("IOTHINK_BROKER_HOST", "broker.env.example")

	cfg, err := Load(writeTestConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Security.JWT.Secret != "env-override-secret-at-least-32-chars" {
		t.Errorf("JWT.Secret not overridden by environment")
	}
	if cfg.Broker.Host != "broker.env.example" {
		t.Errorf("Broker.Host = %q, want env override", cfg.Broker.Host)
	}
}

func TestValidate_MissingJWTSecret(t *testing.T) {
	content := strings.Replace(validConfig,
		`secret: "test-secret-key-at-least-32-chars!"`, `secret: ""`, 1)

	_, err := Load(writeTestConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for missing JWT secret, got nil")
	}
	if !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("error = %v, want mention of security.jwt.secret", err)
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	content := strings.Replace(validConfig,
		`secret: "test-secret-key-at-least-32-chars!"`, `secret: "short"`, 1)

	_, err := Load(writeTestConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for short JWT secret, got nil")
	}
}

func TestValidate_MissingSystemAPIKey(t *testing.T) {
	content := strings.Replace(validConfig,
		`api_key: "telegraf-shared-secret"`, `api_key: ""`, 1)

	_, err := Load(writeTestConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for missing system api_key, got nil")
	}
	if !strings.Contains(err.Error(), "security.system.api_key") {
		t.Errorf("error = %v, want mention of security.system.api_key", err)
	}
}

func TestValidate_BadTopicPrefix(t *testing.T) {
	for _, prefix := range []string{"", "a/b", "pico#", "pi+co"} {
		content := strings.Replace(validConfig,
			`topic_prefix: "pico"`, `topic_prefix: "`+prefix+`"`, 1)

		if _, err := Load(writeTestConfig(t, content)); err == nil {
			t.Errorf("Load() accepted invalid topic_prefix %q", prefix)
		}
	}
}

func TestValidate_InfluxEnabledRequiresURL(t *testing.T) {
	content := validConfig + `
influxdb:
  enabled: true
  bucket: "iot"
`
	if _, err := Load(writeTestConfig(t, content)); err == nil {
		t.Error("Load() accepted enabled influxdb without url")
	}
}
