package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  audit:
    enabled: true
mqtt:
  enabled: true
  broker:
    host: "broker.local"
  topic_prefix: "home"
cache:
  ttl: 30s
executor:
  confirm_timeout: 3s
  poll_interval: 250ms
backends:
  homeassistant:
    enabled: true
    base_url: "http://ha.local:8123"
    token: "ha-token"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if !cfg.Database.Audit.Enabled {
		t.Error("Database.Audit.Enabled = false, want true")
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.TopicPrefix != "home" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}
	if cfg.Executor.PollInterval != 250*time.Millisecond || cfg.Executor.ConfirmTimeout != 3*time.Second {
		t.Errorf("Executor = %+v", cfg.Executor)
	}
	// Unset keys keep their defaults.
	if cfg.Executor.RetryAttempts != 3 || cfg.Cache.FetchTimeout != 10*time.Second {
		t.Errorf("defaults lost: attempts %d fetch timeout %v", cfg.Executor.RetryAttempts, cfg.Cache.FetchTimeout)
	}
	if got := cfg.EnabledBackends(); len(got) != 1 || got[0] != "homeassistant" {
		t.Errorf("EnabledBackends() = %v, want [homeassistant]", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
site:
  id: ""
backends:
  smartthings:
    enabled: true
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"site.id", "backends.smartthings.token"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"audit without path", func(c *Config) { c.Database.Audit.Enabled = true; c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"mqtt without prefix", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.TopicPrefix = "" }, true},
		{"zero TTL", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"zero attempts", func(c *Config) { c.Executor.RetryAttempts = 0 }, true},
		{"poll not shorter than timeout", func(c *Config) { c.Executor.PollInterval = c.Executor.ConfirmTimeout }, true},
		{"negative tolerance", func(c *Config) { c.Executor.Tolerance = -1 }, true},
		{"tuya without secret", func(c *Config) { c.Backends.Tuya.Enabled = true; c.Backends.Tuya.ClientID = "id" }, true},
		{"api port out of range", func(c *Config) { c.API.Enabled = true; c.API.Port = 70000 }, true},
		{"api without ping interval", func(c *Config) { c.API.Enabled = true; c.WS.PingInterval = 0 }, true},
		{"api port ignored when disabled", func(c *Config) { c.API.Port = 0 }, false},
		{"influxdb without bucket", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "" }, true},
		{"influxdb without stats interval", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.StatsInterval = 0 }, true},
		{"tuya with credentials", func(c *Config) {
			c.Backends.Tuya = TuyaConfig{Enabled: true, ClientID: "id", Secret: "s", BaseURL: "https://openapi.tuyaus.com"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_CACHE_TTL", "90s")
	t.Setenv("GRAYLOGIC_EXECUTOR_CONFIRM", "false")
	t.Setenv("GRAYLOGIC_SMARTTHINGS_TOKEN", "st-token")
	t.Setenv("GRAYLOGIC_TUYA_CLIENT_ID", "tuya-id")
	t.Setenv("GRAYLOGIC_TUYA_SECRET", "tuya-secret")
	t.Setenv("GRAYLOGIC_HOMEASSISTANT_TOKEN", "ha-token")
	t.Setenv("GRAYLOGIC_API_PORT", "9090")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "influx-token")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"SmartThings.Token", cfg.Backends.SmartThings.Token, "st-token"},
		{"Tuya.ClientID", cfg.Backends.Tuya.ClientID, "tuya-id"},
		{"Tuya.Secret", cfg.Backends.Tuya.Secret, "tuya-secret"},
		{"HomeAssistant.Token", cfg.Backends.HomeAssistant.Token, "ha-token"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "influx-token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
	}
	if cfg.Executor.Confirm {
		t.Error("Executor.Confirm = true, want false")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestApplyEnvOverrides_InvalidDuration(t *testing.T) {
	t.Setenv("GRAYLOGIC_CACHE_TTL", "soon")
	if err := applyEnvOverrides(defaultConfig()); err == nil {
		t.Error("applyEnvOverrides() expected error for invalid duration, got nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Cache.TTL != 60*time.Second {
		t.Errorf("Cache.TTL = %v, want 60s", cfg.Cache.TTL)
	}
	if cfg.Executor.RetryAttempts != 3 {
		t.Errorf("Executor.RetryAttempts = %d, want 3", cfg.Executor.RetryAttempts)
	}
	if cfg.Executor.PollInterval != 500*time.Millisecond || cfg.Executor.ConfirmTimeout != 5*time.Second {
		t.Errorf("confirmation defaults = %v / %v, want 500ms / 5s", cfg.Executor.PollInterval, cfg.Executor.ConfirmTimeout)
	}
	if !cfg.Executor.Confirm {
		t.Error("Executor.Confirm = false, want true")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if len(cfg.EnabledBackends()) != 0 {
		t.Errorf("EnabledBackends() = %v, want none by default", cfg.EnabledBackends())
	}
}
