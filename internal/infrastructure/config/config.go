package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic hub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig      `yaml:"site"`
	Database DatabaseConfig  `yaml:"database"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Logging  LoggingConfig   `yaml:"logging"`
	Cache    CacheConfig     `yaml:"cache"`
	Executor ExecutorConfig  `yaml:"executor"`
	Backends BackendsConfig  `yaml:"backends"`
	API      APIConfig       `yaml:"api"`
	WS       WebSocketConfig `yaml:"websocket"`
	InfluxDB InfluxDBConfig  `yaml:"influxdb"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
// The database only backs the command journal.
type DatabaseConfig struct {
	Path        string      `yaml:"path"`
	WALMode     bool        `yaml:"wal_mode"`
	BusyTimeout int         `yaml:"busy_timeout"`
	Audit       AuditConfig `yaml:"audit"`
}

// AuditConfig controls the command journal.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains settings for exporting hub metrics to InfluxDB.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
	StatsInterval int    `yaml:"stats_interval"` // seconds between cache and backend samples
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CacheConfig contains Device State Cache settings.
type CacheConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// ExecutorConfig contains Command Executor settings.
type ExecutorConfig struct {
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
	Confirm        bool          `yaml:"confirm"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Tolerance      float64       `yaml:"tolerance"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
}

// BackendsConfig contains per-backend adapter settings.
type BackendsConfig struct {
	SmartThings   SmartThingsConfig   `yaml:"smartthings"`
	Tuya          TuyaConfig          `yaml:"tuya"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
}

// SmartThingsConfig configures the SmartThings adapter.
type SmartThingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// TuyaConfig configures the Tuya adapter.
type TuyaConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"` // regional OpenAPI endpoint
	ClientID string `yaml:"client_id"`
	Secret   string `yaml:"secret"`
}

// HomeAssistantConfig configures the Home Assistant adapter.
type HomeAssistantConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains state stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"` // bytes
	PingInterval   int `yaml:"ping_interval"`    // seconds
	PongTimeout    int `yaml:"pong_timeout"`     // seconds
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_CACHE_TTL
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

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-hub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-hub",
			},
			QoS:         1,
			TopicPrefix: "graylogic",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Cache: CacheConfig{
			TTL:          60 * time.Second,
			FetchTimeout: 10 * time.Second,
		},
		Executor: ExecutorConfig{
			RetryAttempts:  3,
			RetryBaseDelay: 200 * time.Millisecond,
			RetryMaxDelay:  5 * time.Second,
			Confirm:        true,
			ConfirmTimeout: 5 * time.Second,
			PollInterval:   500 * time.Millisecond,
			Tolerance:      1,
			MaxConcurrent:  10,
		},
		Backends: BackendsConfig{
			SmartThings:   SmartThingsConfig{BaseURL: "https://api.smartthings.com/v1"},
			Tuya:          TuyaConfig{BaseURL: "https://openapi.tuyaeu.com"},
			HomeAssistant: HomeAssistantConfig{BaseURL: "http://homeassistant.local:8123"},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
		},
		WS: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "graylogic",
			Bucket:        "hub",
			BatchSize:     100,
			FlushInterval: 10,
			StatsInterval: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Cache
	if v := os.Getenv("GRAYLOGIC_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}

	// Executor
	if v := os.Getenv("GRAYLOGIC_EXECUTOR_CONFIRM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_EXECUTOR_CONFIRM: %w", err)
		}
		cfg.Executor.Confirm = b
	}

	// Backend secrets. Never keep these in the YAML file in production.
	if v := os.Getenv("GRAYLOGIC_SMARTTHINGS_TOKEN"); v != "" {
		cfg.Backends.SmartThings.Token = v
	}
	if v := os.Getenv("GRAYLOGIC_TUYA_CLIENT_ID"); v != "" {
		cfg.Backends.Tuya.ClientID = v
	}
	if v := os.Getenv("GRAYLOGIC_TUYA_SECRET"); v != "" {
		cfg.Backends.Tuya.Secret = v
	}
	if v := os.Getenv("GRAYLOGIC_HOMEASSISTANT_TOKEN"); v != "" {
		cfg.Backends.HomeAssistant.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Every validation failure joined, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Audit.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.audit.enabled is set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive")
	}
	if c.Cache.FetchTimeout <= 0 {
		errs = append(errs, "cache.fetch_timeout must be positive")
	}

	e := c.Executor
	if e.RetryAttempts < 1 {
		errs = append(errs, "executor.retry_attempts must be at least 1")
	}
	if e.RetryBaseDelay <= 0 || e.RetryMaxDelay <= 0 {
		errs = append(errs, "executor.retry_base_delay and retry_max_delay must be positive")
	}
	if e.ConfirmTimeout <= 0 || e.PollInterval <= 0 {
		errs = append(errs, "executor.confirm_timeout and poll_interval must be positive")
	} else if e.PollInterval >= e.ConfirmTimeout {
		errs = append(errs, "executor.poll_interval must be shorter than confirm_timeout")
	}
	if e.Tolerance < 0 {
		errs = append(errs, "executor.tolerance cannot be negative")
	}
	if e.MaxConcurrent < 1 {
		errs = append(errs, "executor.max_concurrent must be at least 1")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Enabled && (c.WS.PingInterval <= 0 || c.WS.PongTimeout <= 0 || c.WS.MaxMessageSize <= 0) {
		errs = append(errs, "websocket.ping_interval, pong_timeout and max_message_size must be positive")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, org and bucket are required when influxdb is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.StatsInterval < 1 {
		errs = append(errs, "influxdb.stats_interval must be at least 1")
	}

	b := c.Backends
	if b.SmartThings.Enabled && b.SmartThings.Token == "" {
		errs = append(errs, "backends.smartthings.token is required (set GRAYLOGIC_SMARTTHINGS_TOKEN)")
	}
	if b.Tuya.Enabled && (b.Tuya.ClientID == "" || b.Tuya.Secret == "") {
		errs = append(errs, "backends.tuya.client_id and secret are required (set GRAYLOGIC_TUYA_CLIENT_ID, GRAYLOGIC_TUYA_SECRET)")
	}
	if b.HomeAssistant.Enabled && (b.HomeAssistant.Token == "" || b.HomeAssistant.BaseURL == "") {
		errs = append(errs, "backends.homeassistant.base_url and token are required (set GRAYLOGIC_HOMEASSISTANT_TOKEN)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// EnabledBackends returns the names of enabled backends.
func (c *Config) EnabledBackends() []string {
	var out []string
	if c.Backends.SmartThings.Enabled {
		out = append(out, "smartthings")
	}
	if c.Backends.Tuya.Enabled {
		out = append(out, "tuya")
	}
	if c.Backends.HomeAssistant.Enabled {
		out = append(out, "homeassistant")
	}
	return out
}
