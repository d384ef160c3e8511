package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validKey = "super_secret_key"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// validConfig returns defaults with the fields that have no default filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Authorization.Host = "10.0.0.5"
	cfg.Pseudonym.Key = validKey
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
  door_id: "front-door"
reader:
  driver: pn532
  i2c_bus: "1"
  i2c_address: 0x24
actuator:
  driver: simulated
  hold: 7s
authorization:
  host: "10.0.0.5"
  port: 8080
  timeout: 3s
  interface: wlan0
pseudonym:
  key: "super_secret_key"
cycle:
  poll_interval: 500ms
database:
  path: "/tmp/test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.DoorID != "front-door" {
		t.Errorf("Site.DoorID = %q, want %q", cfg.Site.DoorID, "front-door")
	}
	if cfg.Actuator.Hold != 7*time.Second {
		t.Errorf("Actuator.Hold = %v, want 7s", cfg.Actuator.Hold)
	}
	if cfg.Authorization.Timeout != 3*time.Second {
		t.Errorf("Authorization.Timeout = %v, want 3s", cfg.Authorization.Timeout)
	}
	if cfg.Cycle.PollInterval != 500*time.Millisecond {
		t.Errorf("Cycle.PollInterval = %v, want 500ms", cfg.Cycle.PollInterval)
	}
	if cfg.Reader.I2CAddress != 0x24 {
		t.Errorf("Reader.I2CAddress = %#x, want 0x24", cfg.Reader.I2CAddress)
	}
	if cfg.Authorization.PathPrefix != "/api" {
		t.Errorf("Authorization.PathPrefix = %q, want default /api", cfg.Authorization.PathPrefix)
	}
	if cfg.Privacy.TokenExposure != TokenExposureRedacted {
		t.Errorf("Privacy.TokenExposure = %q, want redacted", cfg.Privacy.TokenExposure)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
authorization:
  host: "auth.local"
pseudonym:
  key: "super_secret_key"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Actuator.Hold != 7*time.Second {
		t.Errorf("default hold = %v, want 7s", cfg.Actuator.Hold)
	}
	if cfg.Authorization.Timeout != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", cfg.Authorization.Timeout)
	}
	if cfg.Cycle.PollInterval != time.Second {
		t.Errorf("default poll interval = %v, want 1s", cfg.Cycle.PollInterval)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("default api host = %q, want loopback", cfg.API.Host)
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
authorization:
  host: "10.0.0.5"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for missing key, got nil")
	}
	if !strings.Contains(err.Error(), "pseudonym.key") {
		t.Errorf("error = %v, want mention of pseudonym.key", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
authorization:
  host: "file-host"
pseudonym:
  key: "key-from-the-file-1234"
`)
	t.Setenv("GRAYLOGIC_ACCESS_HMAC_KEY", "key-from-the-environment")
	t.Setenv("GRAYLOGIC_ACCESS_AUTH_HOST", "env-host")
	t.Setenv("GRAYLOGIC_ACCESS_AUTH_PORT", "9443")
	t.Setenv("GRAYLOGIC_ACCESS_DOOR_ID", "loading-bay")
	t.Setenv("GRAYLOGIC_ACCESS_MQTT_PASSWORD", "broker-secret")
	t.Setenv("GRAYLOGIC_ACCESS_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pseudonym.Key != "key-from-the-environment" {
		t.Errorf("Pseudonym.Key not overridden")
	}
	if cfg.Authorization.Host != "env-host" || cfg.Authorization.Port != 9443 {
		t.Errorf("Authorization = %s:%d, want env-host:9443", cfg.Authorization.Host, cfg.Authorization.Port)
	}
	if cfg.Site.DoorID != "loading-bay" {
		t.Errorf("Site.DoorID = %q, want loading-bay", cfg.Site.DoorID)
	}
	if cfg.MQTT.Auth.Password != "broker-secret" {
		t.Errorf("MQTT password not overridden")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_InvalidEnvPort(t *testing.T) {
	path := writeConfig(t, `
authorization:
  host: "10.0.0.5"
pseudonym:
  key: "super_secret_key"
`)
	t.Setenv("GRAYLOGIC_ACCESS_AUTH_PORT", "eighty")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for non-numeric port")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing site id", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing door id", func(c *Config) { c.Site.DoorID = "" }, "site.door_id"},
		{"door id with wildcard", func(c *Config) { c.Site.DoorID = "front/#" }, "site.door_id"},
		{"unknown reader", func(c *Config) { c.Reader.Driver = "wiegand" }, "reader.driver"},
		{"bad i2c address", func(c *Config) { c.Reader.I2CAddress = 0x90 }, "reader.i2c_address"},
		{"bench reader without mqtt", func(c *Config) { c.Reader.Driver = "mqtt" }, "mqtt.enabled"},
		{"unknown actuator", func(c *Config) { c.Actuator.Driver = "relay" }, "actuator.driver"},
		{"gpio without pin", func(c *Config) { c.Actuator.Pin = "" }, "actuator.pin"},
		{"zero hold", func(c *Config) { c.Actuator.Hold = 0 }, "actuator.hold"},
		{"missing auth host", func(c *Config) { c.Authorization.Host = "" }, "authorization.host"},
		{"bad auth port", func(c *Config) { c.Authorization.Port = 70000 }, "authorization.port"},
		{"timeout above cap", func(c *Config) { c.Authorization.Timeout = 11 * time.Second }, "authorization.timeout"},
		{"zero timeout", func(c *Config) { c.Authorization.Timeout = 0 }, "authorization.timeout"},
		{"relative path prefix", func(c *Config) { c.Authorization.PathPrefix = "api" }, "path_prefix"},
		{"short key", func(c *Config) { c.Pseudonym.Key = "short" }, "at least 16"},
		{"no key", func(c *Config) { c.Pseudonym.Key = "" }, "pseudonym.key"},
		{"key file only", func(c *Config) { c.Pseudonym.Key = ""; c.Pseudonym.KeyFile = "/etc/key" }, ""},
		{"zero poll interval", func(c *Config) { c.Cycle.PollInterval = 0 }, "cycle.poll_interval"},
		{"unknown exposure", func(c *Config) { c.Privacy.TokenExposure = "partial" }, "token_exposure"},
		{"journal without db", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"journal disabled without db", func(c *Config) { c.Journal.Enabled = false; c.Database.Path = "" }, ""},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"bad api port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"api disabled ignores port", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, ""},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_HMACKey(t *testing.T) {
	cfg := validConfig()
	key, err := cfg.HMACKey()
	if err != nil || string(key) != validKey {
		t.Fatalf("HMACKey() = %q, %v", key, err)
	}

	keyFile := filepath.Join(t.TempDir(), "hmac.key")
	if err := os.WriteFile(keyFile, []byte("file-held-key-0123456\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg.Pseudonym.Key = ""
	cfg.Pseudonym.KeyFile = keyFile
	key, err = cfg.HMACKey()
	if err != nil {
		t.Fatalf("HMACKey() error = %v", err)
	}
	if string(key) != "file-held-key-0123456" {
		t.Errorf("HMACKey() = %q, want trailing newline trimmed", key)
	}

	if err := os.WriteFile(keyFile, []byte("short\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.HMACKey(); err == nil {
		t.Error("HMACKey() expected error for short key file")
	}

	cfg.Pseudonym.KeyFile = filepath.Join(t.TempDir(), "missing")
	if _, err := cfg.HMACKey(); err == nil {
		t.Error("HMACKey() expected error for missing key file")
	}
}

func TestConfig_AuthorizationBaseURL(t *testing.T) {
	cfg := validConfig()
	if got := cfg.AuthorizationBaseURL(); got != "http://10.0.0.5:8080" {
		t.Errorf("AuthorizationBaseURL() = %q", got)
	}
	cfg.Authorization.TLS = true
	cfg.Authorization.Port = 8443
	if got := cfg.AuthorizationBaseURL(); got != "https://10.0.0.5:8443" {
		t.Errorf("AuthorizationBaseURL() = %q", got)
	}
	cfg.Authorization.Host = "fd00::5"
	if got := cfg.AuthorizationBaseURL(); got != "https://[fd00::5]:8443" {
		t.Errorf("AuthorizationBaseURL() = %q", got)
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := &Config{API: APIConfig{Timeouts: APITimeoutConfig{Read: 10, Write: 20, Idle: 60}}}

	if got := cfg.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 20s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}
