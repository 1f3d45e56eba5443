package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "configs/config.yaml"

// envPrefix prefixes every environment override.
const envPrefix = "PRINTWATCH_"

// Store backends.
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// Config is the root configuration structure for printwatch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Printer   PrinterConfig   `yaml:"printer"`
	Store     StoreConfig     `yaml:"store"`
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

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
//
// An empty Secret disables authentication on mutating routes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	Issuer         string `yaml:"issuer"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// PrinterConfig describes the printer's MQTT topic layout.
type PrinterConfig struct {
	// BaseTopic carries the aggregate components payload; each component
	// publishes on BaseTopic/<component>.
	BaseTopic string `yaml:"base_topic"`

	// HistoryRetention is how long component history is kept, in hours.
	// 0 keeps everything.
	HistoryRetention int `yaml:"history_retention"`
}

// StoreConfig contains message store settings.
type StoreConfig struct {
	// Backend is "sqlite" (persist to database.path) or "memory".
	Backend string `yaml:"backend"`

	// Key is the blob key the snapshot is stored under.
	Key string `yaml:"key"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PRINTWATCH_SECTION_KEY
// For example: PRINTWATCH_DATABASE_PATH, PRINTWATCH_API_PORT
//
// An empty path skips the file and uses defaults plus environment.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/printwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "printwatch",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
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
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "printwatch",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer:         "printwatch",
				AccessTokenTTL: 60,
			},
		},
		Printer: PrinterConfig{
			BaseTopic:        "printer/components",
			HistoryRetention: 24 * 7,
		},
		Store: StoreConfig{
			Backend: StoreBackendSQLite,
			Key:     "messageStore",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PRINTWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"DATABASE_PATH":      &cfg.Database.Path,
		"MQTT_HOST":          &cfg.MQTT.Broker.Host,
		"MQTT_CLIENT_ID":     &cfg.MQTT.Broker.ClientID,
		"MQTT_USERNAME":      &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":      &cfg.MQTT.Auth.Password,
		"API_HOST":           &cfg.API.Host,
		"INFLUXDB_URL":       &cfg.InfluxDB.URL,
		"INFLUXDB_TOKEN":     &cfg.InfluxDB.Token,
		"INFLUXDB_ORG":       &cfg.InfluxDB.Org,
		"INFLUXDB_BUCKET":    &cfg.InfluxDB.Bucket,
		"LOG_LEVEL":          &cfg.Logging.Level,
		"LOG_FORMAT":         &cfg.Logging.Format,
		"JWT_SECRET":         &cfg.Security.JWT.Secret,
		"PRINTER_BASE_TOPIC": &cfg.Printer.BaseTopic,
		"STORE_BACKEND":      &cfg.Store.Backend,
	}
	for key, dst := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MQTT_PORT": &cfg.MQTT.Broker.Port,
		"MQTT_QOS":  &cfg.MQTT.QoS,
		"API_PORT":  &cfg.API.Port,
	}
	var errs []string
	for key, dst := range ints {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %q is not an integer", envPrefix, key, v))
			continue
		}
		*dst = n
	}

	bools := map[string]*bool{
		"MQTT_TLS":         &cfg.MQTT.Broker.TLS,
		"INFLUXDB_ENABLED": &cfg.InfluxDB.Enabled,
	}
	for key, dst := range bools {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %q is not a boolean", envPrefix, key, v))
			continue
		}
		*dst = b
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Every problem is reported, not just the first.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Store.Backend != StoreBackendSQLite && c.Store.Backend != StoreBackendMemory {
		errs = append(errs, `store.backend must be "sqlite" or "memory"`)
	}
	if c.Store.Backend == StoreBackendSQLite && c.Database.Path == "" {
		errs = append(errs, "database.path is required for the sqlite store backend")
	}
	if c.Store.Key == "" {
		errs = append(errs, "store.key is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	base := c.Printer.BaseTopic
	if base == "" || strings.ContainsAny(base, "+#") {
		errs = append(errs, "printer.base_topic must be a non-empty topic without wildcards")
	}
	if c.Printer.HistoryRetention < 0 {
		errs = append(errs, "printer.history_retention must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AuthEnabled reports whether mutating API routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.Security.JWT.Secret != ""
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

// GetHistoryRetention returns the component history retention as a Duration.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Printer.HistoryRetention) * time.Hour
}
