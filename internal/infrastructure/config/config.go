package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for PlantOps Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Queues   QueueConfig    `yaml:"queues"`
	Notifier NotifierConfig `yaml:"notifier"`
	LLM      LLMConfig      `yaml:"llm"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection backoff settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MonitorConfig contains device liveness and alerting timings (seconds).
type MonitorConfig struct {
	// LivenessTimeout is how long a device may go without a heartbeat
	// before the sweep marks it offline.
	LivenessTimeout int `yaml:"liveness_timeout"`

	// SweepInterval is how often the offline sweep runs.
	SweepInterval int `yaml:"sweep_interval"`

	// AlertCooldown is the minimum interval between two dispatched alerts
	// for the same plant+metric pair.
	AlertCooldown int `yaml:"alert_cooldown"`
}

// QueueConfig contains bounded queue capacities.
type QueueConfig struct {
	AlertCapacity    int `yaml:"alert_capacity"`
	CarePlanCapacity int `yaml:"careplan_capacity"`
}

// NotifierConfig contains webhook notification settings.
type NotifierConfig struct {
	// WebhookURL is the Discord-compatible webhook endpoint.
	// Empty disables outbound notifications.
	WebhookURL string `yaml:"webhook_url"`

	// Timeout is the per-delivery timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// LLMConfig contains care plan generation settings.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	// Timeout is the hard limit for a single generation call, in seconds.
	Timeout int `yaml:"timeout"`
}

// InfluxDBConfig contains optional time-series mirror settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
// Environment variables follow the pattern: PLANTOPS_SECTION_KEY
// For example: PLANTOPS_DATABASE_PATH, PLANTOPS_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
			Path:        "./data/plantops.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "plantops-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Monitor: MonitorConfig{
			LivenessTimeout: 180,
			SweepInterval:   60,
			AlertCooldown:   3600,
		},
		Queues: QueueConfig{
			AlertCapacity:    100,
			CarePlanCapacity: 10,
		},
		Notifier: NotifierConfig{
			Timeout: 10,
		},
		LLM: LLMConfig{
			Timeout: 60,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PLANTOPS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("PLANTOPS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PLANTOPS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PLANTOPS_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("PLANTOPS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PLANTOPS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Notifier
	if v := os.Getenv("PLANTOPS_NOTIFIER_WEBHOOK_URL"); v != "" {
		cfg.Notifier.WebhookURL = v
	}

	// LLM
	if v := os.Getenv("PLANTOPS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	// InfluxDB
	if v := os.Getenv("PLANTOPS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("PLANTOPS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must be >= initial_delay")
	}

	if c.Monitor.LivenessTimeout <= 0 {
		errs = append(errs, "monitor.liveness_timeout must be positive")
	}
	if c.Monitor.SweepInterval <= 0 {
		errs = append(errs, "monitor.sweep_interval must be positive")
	}
	if c.Monitor.AlertCooldown < 0 {
		errs = append(errs, "monitor.alert_cooldown cannot be negative")
	}

	if c.Queues.AlertCapacity <= 0 {
		errs = append(errs, "queues.alert_capacity must be positive")
	}
	if c.Queues.CarePlanCapacity <= 0 {
		errs = append(errs, "queues.careplan_capacity must be positive")
	}

	if c.LLM.Enabled && c.LLM.APIKey == "" {
		errs = append(errs, "llm.api_key is required when llm.enabled is true")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LivenessTimeout returns the heartbeat staleness window as a Duration.
func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.Monitor.LivenessTimeout) * time.Second
}

// SweepInterval returns the offline sweep period as a Duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Monitor.SweepInterval) * time.Second
}

// AlertCooldown returns the alert cooldown window as a Duration.
func (c *Config) AlertCooldown() time.Duration {
	return time.Duration(c.Monitor.AlertCooldown) * time.Second
}

// NotifierTimeout returns the per-delivery webhook timeout as a Duration.
func (c *Config) NotifierTimeout() time.Duration {
	return time.Duration(c.Notifier.Timeout) * time.Second
}

// LLMTimeout returns the care plan generation timeout as a Duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.Timeout) * time.Second
}

// ReconnectInitialDelay returns the MQTT reconnect seed delay as a Duration.
func (c *Config) ReconnectInitialDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second
}

// ReconnectMaxDelay returns the MQTT reconnect delay cap as a Duration.
func (c *Config) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
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
