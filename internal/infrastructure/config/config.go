package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for IoThink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	Broker      BrokerConfig      `yaml:"broker"`
	Security    SecurityConfig    `yaml:"security"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// BrokerConfig describes the MQTT broker advertised to devices.
//
// The core never speaks MQTT to the broker itself — the broker calls back
// into the core via the /mqtt hook endpoints. Host and port are handed out
// in credential responses so devices know where to connect, and TopicPrefix
// defines the per-device topic namespace <prefix>/<device_id>.
type BrokerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT    JWTConfig             `yaml:"jwt"`
	System SystemPrincipalConfig `yaml:"system"`
}

// JWTConfig contains JWT token settings. TTLs are in minutes.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
}

// SystemPrincipalConfig identifies the reserved system principal (the
// telemetry-ingestion agent). It authenticates with a shared secret held
// here rather than a device record, and is the only identity ever granted
// superuser or cross-topic access by the MQTT auth bridge.
type SystemPrincipalConfig struct {
	Username string `yaml:"username"`
	APIKey   string `yaml:"api_key"`
}

// MaintenanceConfig contains the device inactivity sweep settings.
type MaintenanceConfig struct {
	// SweepInterval is how often the sweep runs, in seconds.
	SweepInterval int `yaml:"sweep_interval"`

	// InactiveThreshold is how long a device may go unseen before being
	// demoted to inactive, in minutes.
	InactiveThreshold int `yaml:"inactive_threshold"`
}

// InfluxDBConfig contains settings for the external telemetry store.
// The core only reads sensor liveness from it; writes are done by the
// telemetry agent outside this process.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IOTHINK_SECTION_KEY
// For example: IOTHINK_DATABASE_PATH, IOTHINK_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/iothink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Broker: BrokerConfig{
			Host:        "localhost",
			Port:        8883,
			TopicPrefix: "pico",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  60,
				RefreshTokenTTL: 10080,
			},
			System: SystemPrincipalConfig{
				Username: "telegraf",
			},
		},
		Maintenance: MaintenanceConfig{
			SweepInterval:     60,
			InactiveThreshold: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IOTHINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("IOTHINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("IOTHINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("IOTHINK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Broker
	if v := os.Getenv("IOTHINK_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("IOTHINK_BROKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Broker.Port = port
		}
	}

	// Security - always set these via environment in production
	if v := os.Getenv("IOTHINK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("IOTHINK_SYSTEM_API_KEY"); v != "" {
		cfg.Security.System.APIKey = v
	}

	// InfluxDB
	if v := os.Getenv("IOTHINK_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("IOTHINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Broker validation
	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if c.Broker.TopicPrefix == "" || strings.ContainsAny(c.Broker.TopicPrefix, "/#+") {
		errs = append(errs, "broker.topic_prefix must be a single non-empty topic level")
	}

	// Security validation - JWT secret is REQUIRED.
	// An empty or weak secret would allow anyone to forge device and admin
	// tokens and walk straight through the MQTT auth bridge.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set IOTHINK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Security.System.Username == "" {
		errs = append(errs, "security.system.username is required")
	}
	if c.Security.System.APIKey == "" {
		errs = append(errs, "security.system.api_key is required (set IOTHINK_SYSTEM_API_KEY environment variable)")
	}

	// Maintenance validation
	if c.Maintenance.SweepInterval < 1 {
		errs = append(errs, "maintenance.sweep_interval must be positive")
	}
	if c.Maintenance.InactiveThreshold < 1 {
		errs = append(errs, "maintenance.inactive_threshold must be positive")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSweepInterval returns the maintenance sweep interval as a Duration.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Maintenance.SweepInterval) * time.Second
}

// GetInactiveThreshold returns the device inactivity threshold as a Duration.
func (c *Config) GetInactiveThreshold() time.Duration {
	return time.Duration(c.Maintenance.InactiveThreshold) * time.Minute
}
