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
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 8883
    tls: true
    client_id: "dash-1"
  qos: 2
printer:
  base_topic: "farm/printers"
store:
  backend: "memory"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.Broker.Port != 8883 || !cfg.MQTT.Broker.TLS {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.Printer.BaseTopic != "farm/printers" {
		t.Errorf("Printer.BaseTopic = %q, want %q", cfg.Printer.BaseTopic, "farm/printers")
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, StoreBackendMemory)
	}
	if !cfg.AuthEnabled() {
		t.Error("AuthEnabled() = false with a secret set")
	}

	// Unset keys keep their defaults.
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
	if cfg.Store.Key != "messageStore" {
		t.Errorf("Store.Key = %q, want default %q", cfg.Store.Key, "messageStore")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Printer.BaseTopic != "printer/components" {
		t.Errorf("Printer.BaseTopic = %q", cfg.Printer.BaseTopic)
	}
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled() = true without a secret")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "redis"
api:
  port: 0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"store.backend", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "file-host"
`)
	t.Setenv("PRINTWATCH_MQTT_HOST", "env-host")
	t.Setenv("PRINTWATCH_API_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "env-host" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "env-host")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "with JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = validJWTSecret }},
		{name: "memory store without database path", mutate: func(c *Config) {
			c.Store.Backend = StoreBackendMemory
			c.Database.Path = ""
		}},
		{name: "sqlite store without database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "unknown store backend", mutate: func(c *Config) { c.Store.Backend = "redis" }, wantErr: true},
		{name: "empty store key", mutate: func(c *Config) { c.Store.Key = "" }, wantErr: true},
		{name: "missing broker host", mutate: func(c *Config) { c.MQTT.Broker.Host = "" }, wantErr: true},
		{name: "invalid broker port", mutate: func(c *Config) { c.MQTT.Broker.Port = 0 }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "TLS without files", mutate: func(c *Config) { c.API.TLS.Enabled = true }, wantErr: true},
		{name: "influxdb without bucket", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.Bucket = ""
		}, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "empty base topic", mutate: func(c *Config) { c.Printer.BaseTopic = "" }, wantErr: true},
		{name: "wildcard base topic", mutate: func(c *Config) { c.Printer.BaseTopic = "printer/#" }, wantErr: true},
		{name: "negative retention", mutate: func(c *Config) { c.Printer.HistoryRetention = -1 }, wantErr: true},
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

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Printer: PrinterConfig{HistoryRetention: 2},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetHistoryRetention(); got != 2*time.Hour {
		t.Errorf("GetHistoryRetention() = %v, want 2h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("PRINTWATCH_DATABASE_PATH", "/custom/path.db")
	t.Setenv("PRINTWATCH_MQTT_HOST", "mqtt.example.com")
	t.Setenv("PRINTWATCH_MQTT_PORT", "8883")
	t.Setenv("PRINTWATCH_MQTT_TLS", "true")
	t.Setenv("PRINTWATCH_MQTT_USERNAME", "testuser")
	t.Setenv("PRINTWATCH_MQTT_PASSWORD", "testpass")
	t.Setenv("PRINTWATCH_API_HOST", "192.168.1.1")
	t.Setenv("PRINTWATCH_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("PRINTWATCH_INFLUXDB_ENABLED", "1")
	t.Setenv("PRINTWATCH_JWT_SECRET", "jwt-secret")
	t.Setenv("PRINTWATCH_PRINTER_BASE_TOPIC", "lab/printer")
	t.Setenv("PRINTWATCH_STORE_BACKEND", "memory")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 8883},
		{"MQTT.Broker.TLS", cfg.MQTT.Broker.TLS, true},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"InfluxDB.Enabled", cfg.InfluxDB.Enabled, true},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
		{"Printer.BaseTopic", cfg.Printer.BaseTopic, "lab/printer"},
		{"Store.Backend", cfg.Store.Backend, "memory"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("PRINTWATCH_API_PORT", "eighty")
	t.Setenv("PRINTWATCH_MQTT_TLS", "sometimes")

	err := applyEnvOverrides(cfg)
	if err == nil {
		t.Fatal("applyEnvOverrides() error = nil, want error")
	}
	for _, want := range []string{"PRINTWATCH_API_PORT", "PRINTWATCH_MQTT_TLS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want unchanged 8080", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig does not validate: %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Store.Backend != StoreBackendSQLite {
		t.Errorf("defaultConfig Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
}
