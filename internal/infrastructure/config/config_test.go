package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
broker:
  host: "broker.example.com"
  port: 8883
  client_id: "test-client"
tls:
  cert_dir: "/etc/iotcore/certs"
  root_ca: "rootCA.pem"
session:
  keep_alive: 30s
  command_timeout: 5s
publish:
  topic: "test/topic"
  count: 3
  interval: 500ms
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Broker.Host != "broker.example.com" {
		t.Errorf("Broker.Host = %q, want %q", cfg.Broker.Host, "broker.example.com")
	}

	if cfg.Session.KeepAlive != 30*time.Second {
		t.Errorf("Session.KeepAlive = %v, want 30s", cfg.Session.KeepAlive)
	}

	if cfg.Publish.Interval != 500*time.Millisecond {
		t.Errorf("Publish.Interval = %v, want 500ms", cfg.Publish.Interval)
	}

	// Relative certificate paths resolve against cert_dir.
	if want := "/etc/iotcore/certs/rootCA.pem"; cfg.TLS.RootCA != want {
		t.Errorf("TLS.RootCA = %q, want %q", cfg.TLS.RootCA, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
broker:
  host: ""
tls:
  root_ca: "/certs/rootCA.pem"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty broker.host, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// valid returns a config that passes validation; tests mutate one field.
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.TLS.RootCA = "/certs/rootCA.pem"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.Broker.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing root CA",
			mutate:  func(c *Config) { c.TLS.RootCA = "" },
			wantErr: true,
		},
		{
			name: "insecure without root CA",
			mutate: func(c *Config) {
				c.TLS.RootCA = ""
				c.TLS.Insecure = true
			},
			wantErr: false,
		},
		{
			name:    "client cert without key",
			mutate:  func(c *Config) { c.TLS.Cert = "/certs/client.pem" },
			wantErr: true,
		},
		{
			name:    "zero keep-alive",
			mutate:  func(c *Config) { c.Session.KeepAlive = 0 },
			wantErr: true,
		},
		{
			name:    "negative reconnect attempts",
			mutate:  func(c *Config) { c.Session.MaxReconnectAttempts = -1 },
			wantErr: true,
		},
		{
			name:    "zero publish count",
			mutate:  func(c *Config) { c.Publish.Count = 0 },
			wantErr: true,
		},
		{
			name:    "zero publish yield timeout",
			mutate:  func(c *Config) { c.Publish.YieldTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "empty subscribe topic",
			mutate:  func(c *Config) { c.Subscribe.Topic = "" },
			wantErr: true,
		},
		{
			name:    "zero subscribe poll interval",
			mutate:  func(c *Config) { c.Subscribe.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without token",
			mutate:  func(c *Config) { c.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://localhost:8086"} },
			wantErr: true,
		},
		{
			name:    "metrics enabled without listen address",
			mutate:  func(c *Config) { c.Metrics = MetricsConfig{Enabled: true} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
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

	t.Setenv("IOTCORE_BROKER_HOST", "broker.example.com")
	t.Setenv("IOTCORE_BROKER_PORT", "18883")
	t.Setenv("IOTCORE_BROKER_CLIENT_ID", "env-client")
	t.Setenv("IOTCORE_TLS_CERT_DIR", "/run/secrets/certs")
	t.Setenv("IOTCORE_INFLUXDB_URL", "http://influx.example.com:8086")
	t.Setenv("IOTCORE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Broker.Host != "broker.example.com" {
		t.Errorf("Broker.Host = %q, want %q", cfg.Broker.Host, "broker.example.com")
	}

	if cfg.Broker.Port != 18883 {
		t.Errorf("Broker.Port = %d, want 18883", cfg.Broker.Port)
	}

	if cfg.Broker.ClientID != "env-client" {
		t.Errorf("Broker.ClientID = %q, want %q", cfg.Broker.ClientID, "env-client")
	}

	if cfg.TLS.CertDir != "/run/secrets/certs" {
		t.Errorf("TLS.CertDir = %q, want %q", cfg.TLS.CertDir, "/run/secrets/certs")
	}

	if cfg.InfluxDB.URL != "http://influx.example.com:8086" {
		t.Errorf("InfluxDB.URL = %q, want %q", cfg.InfluxDB.URL, "http://influx.example.com:8086")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("IOTCORE_BROKER_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.Broker.Port != 8883 {
		t.Errorf("Broker.Port = %d, want default 8883", cfg.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Broker.Port != 8883 {
		t.Errorf("defaultConfig Broker.Port = %d, want 8883", cfg.Broker.Port)
	}

	if cfg.Session.KeepAlive != 10*time.Second {
		t.Errorf("defaultConfig Session.KeepAlive = %v, want 10s", cfg.Session.KeepAlive)
	}

	if cfg.Session.CommandTimeout != 2*time.Second {
		t.Errorf("defaultConfig Session.CommandTimeout = %v, want 2s", cfg.Session.CommandTimeout)
	}

	if cfg.TLS.HandshakeTimeout != 5*time.Second {
		t.Errorf("defaultConfig TLS.HandshakeTimeout = %v, want 5s", cfg.TLS.HandshakeTimeout)
	}

	if cfg.Publish.Topic == "" {
		t.Error("defaultConfig should have non-empty Publish.Topic")
	}

	if cfg.Publish.Count != 10 {
		t.Errorf("defaultConfig Publish.Count = %d, want 10", cfg.Publish.Count)
	}
}

func TestTLSResolvePaths(t *testing.T) {
	tls := TLSConfig{
		CertDir: "/etc/iotcore/certs",
		RootCA:  "rootCA.pem",
		Cert:    "/absolute/client.pem",
		Key:     "",
	}
	tls.resolvePaths()

	if want := "/etc/iotcore/certs/rootCA.pem"; tls.RootCA != want {
		t.Errorf("RootCA = %q, want %q", tls.RootCA, want)
	}
	if want := "/absolute/client.pem"; tls.Cert != want {
		t.Errorf("Cert = %q, want absolute path untouched %q", tls.Cert, want)
	}
	if tls.Key != "" {
		t.Errorf("Key = %q, want empty untouched", tls.Key)
	}
}
