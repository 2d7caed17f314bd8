package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Stuga Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub        HubConfig        `yaml:"hub"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	Request    RequestConfig    `yaml:"request"`
	Optimistic OptimisticConfig `yaml:"optimistic"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// HubConfig contains connection settings for the hub's WebSocket API.
type HubConfig struct {
	// URL is the full WebSocket endpoint, e.g. "ws://hub.local:8123/api/websocket".
	URL string `yaml:"url"`

	// Token is a long-lived access token. Ignored when UseOAuth is true.
	Token string `yaml:"token"`

	// UseOAuth selects refresh-token authentication via the credential store
	// instead of the static token above.
	UseOAuth bool `yaml:"use_oauth"`

	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int `yaml:"max_message_size"`
}

// ReconnectConfig contains reconnection settings.
type ReconnectConfig struct {
	// Delay is the fixed wait before a reconnect attempt, in seconds.
	Delay int `yaml:"delay"`
}

// RequestConfig contains RPC request settings.
type RequestConfig struct {
	// Timeout is the default per-request timeout, in seconds.
	Timeout int `yaml:"timeout"`
}

// OptimisticConfig contains optimistic state override settings.
type OptimisticConfig struct {
	// Duration is how long an override survives without an authoritative
	// state event, in seconds.
	Duration int `yaml:"duration"`

	// SimulatedDuration replaces Duration when running against a simulated
	// data source, where no real event will ever clear the override.
	SimulatedDuration int `yaml:"simulated_duration"`
}

// DatabaseConfig contains SQLite settings for the credential store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains settings for the optional state telemetry sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MQTTConfig contains settings for the optional MQTT state relay.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file, applies environment variable
// overrides, and validates the result.
//
// Environment variables follow the pattern STUGA_SECTION_KEY.
// For example: STUGA_HUB_URL, STUGA_HUB_TOKEN, STUGA_DATABASE_PATH.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
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

// Default returns a Config with defaults applied and no file loaded.
// Useful for embedding the core without a config file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			MaxMessageSize: 4 << 20,
		},
		Reconnect: ReconnectConfig{
			Delay: 5,
		},
		Request: RequestConfig{
			Timeout: 30,
		},
		Optimistic: OptimisticConfig{
			Duration:          5,
			SimulatedDuration: 300,
		},
		Database: DatabaseConfig{
			Path:        "./data/stuga.db",
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "stuga-core",
			QoS:      1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STUGA_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("STUGA_HUB_URL"); v != "" {
		cfg.Hub.URL = v
	}
	if v := os.Getenv("STUGA_HUB_TOKEN"); v != "" {
		cfg.Hub.Token = v
	}

	// Database
	if v := os.Getenv("STUGA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("STUGA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// MQTT
	if v := os.Getenv("STUGA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("STUGA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.URL == "" {
		errs = append(errs, "hub.url is required")
	} else if !strings.HasPrefix(c.Hub.URL, "ws://") && !strings.HasPrefix(c.Hub.URL, "wss://") {
		errs = append(errs, "hub.url must use the ws:// or wss:// scheme")
	}

	if !c.Hub.UseOAuth && c.Hub.Token == "" {
		errs = append(errs, "hub.token is required when oauth is disabled (set STUGA_HUB_TOKEN)")
	}

	if c.Reconnect.Delay < 1 {
		errs = append(errs, "reconnect.delay must be at least 1 second")
	}

	if c.Request.Timeout < 1 {
		errs = append(errs, "request.timeout must be at least 1 second")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReconnectDelay returns the reconnect delay as a Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.Delay) * time.Second
}

// RequestTimeout returns the default RPC timeout as a Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Request.Timeout) * time.Second
}

// OptimisticDuration returns the override lifetime as a Duration.
func (c *Config) OptimisticDuration() time.Duration {
	return time.Duration(c.Optimistic.Duration) * time.Second
}

// SimulatedOptimisticDuration returns the extended override lifetime used
// against simulated data sources.
func (c *Config) SimulatedOptimisticDuration() time.Duration {
	return time.Duration(c.Optimistic.SimulatedDuration) * time.Second
}
