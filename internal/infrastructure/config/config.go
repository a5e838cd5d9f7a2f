package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the sample applications.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	TLS       TLSConfig       `yaml:"tls"`
	Session   SessionConfig   `yaml:"session"`
	Publish   PublishConfig   `yaml:"publish"`
	Subscribe SubscribeConfig `yaml:"subscribe"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BrokerConfig contains broker endpoint settings.
type BrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ClientID identifies this client to the broker. Empty means a
	// generated one; set it explicitly when running several instances.
	ClientID string `yaml:"client_id"`
}

// TLSConfig contains TLS certificate settings.
//
// Relative file paths are resolved against CertDir by Load, so a config
// can name just "rootCA.pem" and point cert_dir at the certificate
// directory.
type TLSConfig struct {
	CertDir    string `yaml:"cert_dir"`
	RootCA     string `yaml:"root_ca"`
	Cert       string `yaml:"cert"`
	Key        string `yaml:"key"`
	ServerName string `yaml:"server_name"`
	// HandshakeTimeout bounds the TCP connect plus TLS handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// Insecure disables broker certificate verification. Development use only.
	Insecure bool `yaml:"insecure"`
}

// SessionConfig contains session and keep-alive settings.
type SessionConfig struct {
	KeepAlive      time.Duration `yaml:"keep_alive"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	CleanSession   bool          `yaml:"clean_session"`
	AutoReconnect  bool          `yaml:"auto_reconnect"`
	// MaxReconnectAttempts limits retries per outage. 0 means unlimited.
	MaxReconnectAttempts  int           `yaml:"max_reconnect_attempts"`
	ReconnectInitialDelay time.Duration `yaml:"reconnect_initial_delay"`
	ReconnectMaxDelay     time.Duration `yaml:"reconnect_max_delay"`
}

// PublishConfig contains settings for the publishing sample.
type PublishConfig struct {
	Topic string `yaml:"topic"`
	// Count is how many messages to publish before exiting.
	Count    int           `yaml:"count"`
	Interval time.Duration `yaml:"interval"`
	// YieldTimeout is how long each protocol processing pass runs
	// between publishes.
	YieldTimeout time.Duration `yaml:"yield_timeout"`
}

// SubscribeConfig contains settings for the subscribing sample.
type SubscribeConfig struct {
	Topic string `yaml:"topic"`
	// YieldTimeout is how long each protocol processing pass runs.
	YieldTimeout time.Duration `yaml:"yield_timeout"`
	// PollInterval is the sleep between processing passes.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings for the reading
// recorder.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// MetricsConfig contains Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration, TLS paths resolved
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
	cfg.TLS.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults. The session and
// sample values mirror the reference applications.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host: "localhost",
			Port: 8883,
		},
		TLS: TLSConfig{
			HandshakeTimeout: 5 * time.Second,
		},
		Session: SessionConfig{
			KeepAlive:             10 * time.Second,
			CommandTimeout:        2 * time.Second,
			CleanSession:          true,
			AutoReconnect:         true,
			MaxReconnectAttempts:  0,
			ReconnectInitialDelay: 1 * time.Second,
			ReconnectMaxDelay:     128 * time.Second,
		},
		Publish: PublishConfig{
			Topic:        "sample-application/random-number",
			Count:        10,
			Interval:     1 * time.Second,
			YieldTimeout: 100 * time.Millisecond,
		},
		Subscribe: SubscribeConfig{
			Topic:        "sample-application/random-number",
			YieldTimeout: 100 * time.Millisecond,
			PollInterval: 1 * time.Second,
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IOTCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Broker
	if v := os.Getenv("IOTCORE_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("IOTCORE_BROKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Broker.Port = port
		}
	}
	if v := os.Getenv("IOTCORE_BROKER_CLIENT_ID"); v != "" {
		cfg.Broker.ClientID = v
	}

	// TLS
	if v := os.Getenv("IOTCORE_TLS_CERT_DIR"); v != "" {
		cfg.TLS.CertDir = v
	}

	// InfluxDB
	if v := os.Getenv("IOTCORE_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("IOTCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// resolvePaths joins relative certificate paths onto CertDir.
func (t *TLSConfig) resolvePaths() {
	t.RootCA = t.resolve(t.RootCA)
	t.Cert = t.resolve(t.Cert)
	t.Key = t.resolve(t.Key)
}

func (t *TLSConfig) resolve(path string) string {
	if path == "" || t.CertDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.CertDir, path)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}

	// TLS validation: verification needs a trust anchor.
	if c.TLS.RootCA == "" && !c.TLS.Insecure {
		errs = append(errs, "tls.root_ca is required unless tls.insecure is set")
	}
	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		errs = append(errs, "tls.cert and tls.key must be configured together")
	}

	if c.Session.KeepAlive <= 0 {
		errs = append(errs, "session.keep_alive must be positive")
	}
	if c.Session.CommandTimeout <= 0 {
		errs = append(errs, "session.command_timeout must be positive")
	}
	if c.Session.MaxReconnectAttempts < 0 {
		errs = append(errs, "session.max_reconnect_attempts cannot be negative")
	}

	if c.Publish.Topic == "" {
		errs = append(errs, "publish.topic is required")
	}
	if c.Publish.Count < 1 {
		errs = append(errs, "publish.count must be at least 1")
	}
	if c.Publish.Interval <= 0 {
		errs = append(errs, "publish.interval must be positive")
	}
	if c.Publish.YieldTimeout <= 0 {
		errs = append(errs, "publish.yield_timeout must be positive")
	}

	if c.Subscribe.Topic == "" {
		errs = append(errs, "subscribe.topic is required")
	}
	if c.Subscribe.YieldTimeout <= 0 {
		errs = append(errs, "subscribe.yield_timeout must be positive")
	}
	if c.Subscribe.PollInterval <= 0 {
		errs = append(errs, "subscribe.poll_interval must be positive")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb.enabled (set IOTCORE_INFLUXDB_TOKEN)")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
