package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GRAYLOGIC_ACCESS_"

// Limits enforced by Validate.
const (
	MinHMACKeyLength         = 16
	MaxAuthorizationTimeout  = 10 * time.Second
	DefaultAuthorizationPath = "/api"
)

// Token exposure policies for observability output.
const (
	TokenExposureRedacted = "redacted"
	TokenExposureFull     = "full"
	TokenExposureNone     = "none"
)

// Config is the root configuration for the access endpoint.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site          SiteConfig          `yaml:"site"`
	Reader        ReaderConfig        `yaml:"reader"`
	Actuator      ActuatorConfig      `yaml:"actuator"`
	Authorization AuthorizationConfig `yaml:"authorization"`
	Pseudonym     PseudonymConfig     `yaml:"pseudonym"`
	Cycle         CycleConfig         `yaml:"cycle"`
	Privacy       PrivacyConfig       `yaml:"privacy"`
	Database      DatabaseConfig      `yaml:"database"`
	Journal       JournalConfig       `yaml:"journal"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Health        HealthConfig        `yaml:"health"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SiteConfig identifies the installation and the door this endpoint controls.
type SiteConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	DoorID string `yaml:"door_id"`
}

// ReaderConfig selects the card reader.
type ReaderConfig struct {
	// Driver is "pn532" (I²C hardware) or "mqtt" (bench injection).
	Driver     string `yaml:"driver"`
	I2CBus     string `yaml:"i2c_bus"`
	I2CAddress int    `yaml:"i2c_address"`

	// FaultIndicatorPin is driven HIGH when the reader or strike faults.
	// Empty disables the indicator.
	FaultIndicatorPin string `yaml:"fault_indicator_pin"`
}

// ActuatorConfig configures the door strike output.
type ActuatorConfig struct {
	// Driver is "gpio" or "simulated".
	Driver string        `yaml:"driver"`
	Pin    string        `yaml:"pin"`
	Hold   time.Duration `yaml:"hold"`
}

// AuthorizationConfig locates the authorization service.
type AuthorizationConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	TLS        bool          `yaml:"tls"`
	PathPrefix string        `yaml:"path_prefix"`
	Timeout    time.Duration `yaml:"timeout"`

	// Interface is the network interface whose state gates queries.
	// Empty means the link is assumed up.
	Interface string `yaml:"interface"`

	// LinkWait bounds how long startup waits for the interface.
	LinkWait time.Duration `yaml:"link_wait"`
}

// PseudonymConfig holds the HMAC key. Exactly one of Key or KeyFile is used;
// Key wins when both are set.
type PseudonymConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"`
}

// CycleConfig tunes the access cycle.
type CycleConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PrivacyConfig controls how much of a token reaches logs and events.
type PrivacyConfig struct {
	TokenExposure string `yaml:"token_exposure"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// JournalConfig controls the local access journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RetentionDays int           `yaml:"retention_days"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// HealthConfig controls the MQTT health reporter.
type HealthConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// APIConfig contains local status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the live outcome stream.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_ACCESS_SECTION_KEY
// For example: GRAYLOGIC_ACCESS_AUTH_HOST, GRAYLOGIC_ACCESS_HMAC_KEY
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:     "site-001",
			Name:   "Gray Logic",
			DoorID: "door-001",
		},
		Reader: ReaderConfig{
			Driver:     "pn532",
			I2CBus:     "1",
			I2CAddress: 0x24,
		},
		Actuator: ActuatorConfig{
			Driver: "gpio",
			Pin:    "GPIO17",
			Hold:   7 * time.Second,
		},
		Authorization: AuthorizationConfig{
			Port:       8080,
			PathPrefix: DefaultAuthorizationPath,
			Timeout:    5 * time.Second,
			LinkWait:   30 * time.Second,
		},
		Cycle: CycleConfig{
			PollInterval: time.Second,
		},
		Privacy: PrivacyConfig{
			TokenExposure: TokenExposureRedacted,
		},
		Database: DatabaseConfig{
			Path:        "./data/access.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Journal: JournalConfig{
			Enabled:       true,
			RetentionDays: 30,
			PruneInterval: 6 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-access",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Health: HealthConfig{
			Interval: 30 * time.Second,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 1024,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_ACCESS_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Site
	if v := os.Getenv(EnvPrefix + "DOOR_ID"); v != "" {
		cfg.Site.DoorID = v
	}

	// Pseudonym key (preferred over putting it in the file)
	if v := os.Getenv(EnvPrefix + "HMAC_KEY"); v != "" {
		cfg.Pseudonym.Key = v
	}

	// Authorization service
	if v := os.Getenv(EnvPrefix + "AUTH_HOST"); v != "" {
		cfg.Authorization.Host = v
	}
	if v := os.Getenv(EnvPrefix + "AUTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sAUTH_PORT: %w", EnvPrefix, err)
		}
		cfg.Authorization.Port = port
	}

	// Database
	if v := os.Getenv(EnvPrefix + "DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv(EnvPrefix + "MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv(EnvPrefix + "API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv(EnvPrefix + "INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Site.DoorID == "" {
		errs = append(errs, "site.door_id is required")
	} else if strings.ContainsAny(c.Site.DoorID, "/+# ") {
		errs = append(errs, "site.door_id must not contain '/', '+', '#' or spaces")
	}

	// Reader
	switch c.Reader.Driver {
	case "pn532":
		if c.Reader.I2CAddress < 0x08 || c.Reader.I2CAddress > 0x77 {
			errs = append(errs, "reader.i2c_address must be a 7-bit address between 0x08 and 0x77")
		}
	case "mqtt":
		if !c.MQTT.Enabled {
			errs = append(errs, "reader.driver mqtt requires mqtt.enabled")
		}
	default:
		errs = append(errs, "reader.driver must be pn532 or mqtt")
	}

	// Actuator
	switch c.Actuator.Driver {
	case "gpio":
		if c.Actuator.Pin == "" {
			errs = append(errs, "actuator.pin is required for the gpio driver")
		}
	case "simulated":
	default:
		errs = append(errs, "actuator.driver must be gpio or simulated")
	}
	if c.Actuator.Hold <= 0 {
		errs = append(errs, "actuator.hold must be positive")
	}

	// Authorization
	if c.Authorization.Host == "" {
		errs = append(errs, "authorization.host is required (set GRAYLOGIC_ACCESS_AUTH_HOST)")
	}
	if c.Authorization.Port < 1 || c.Authorization.Port > 65535 {
		errs = append(errs, "authorization.port must be between 1 and 65535")
	}
	if c.Authorization.Timeout <= 0 || c.Authorization.Timeout > MaxAuthorizationTimeout {
		errs = append(errs, fmt.Sprintf("authorization.timeout must be between 0 and %v", MaxAuthorizationTimeout))
	}
	if !strings.HasPrefix(c.Authorization.PathPrefix, "/") {
		errs = append(errs, "authorization.path_prefix must start with '/'")
	}

	// Pseudonym key: a weak key makes tokens guessable from UIDs.
	switch {
	case c.Pseudonym.Key != "":
		if len(c.Pseudonym.Key) < MinHMACKeyLength {
			errs = append(errs, fmt.Sprintf("pseudonym.key must be at least %d bytes", MinHMACKeyLength))
		}
	case c.Pseudonym.KeyFile != "":
	default:
		errs = append(errs, "pseudonym.key or pseudonym.key_file is required (set GRAYLOGIC_ACCESS_HMAC_KEY)")
	}

	// Cycle
	if c.Cycle.PollInterval <= 0 {
		errs = append(errs, "cycle.poll_interval must be positive")
	}

	// Privacy
	switch c.Privacy.TokenExposure {
	case TokenExposureRedacted, TokenExposureFull, TokenExposureNone:
	default:
		errs = append(errs, "privacy.token_exposure must be redacted, full or none")
	}

	// Journal
	if c.Journal.Enabled {
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when the journal is enabled")
		}
		if c.Journal.RetentionDays < 0 {
			errs = append(errs, "journal.retention_days must not be negative")
		}
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HMACKey returns the pseudonymization key, reading key_file if no inline
// key is set. A single trailing newline in the file is ignored.
func (c *Config) HMACKey() ([]byte, error) {
	if c.Pseudonym.Key != "" {
		return []byte(c.Pseudonym.Key), nil
	}
	data, err := os.ReadFile(c.Pseudonym.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading pseudonym key file: %w", err)
	}
	key := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
	if len(key) < MinHMACKeyLength {
		return nil, fmt.Errorf("pseudonym key file holds %d bytes, need at least %d", len(key), MinHMACKeyLength)
	}
	return []byte(key), nil
}

// AuthorizationBaseURL returns the service root, e.g. "http://10.0.0.5:8080".
func (c *Config) AuthorizationBaseURL() string {
	scheme := "http"
	if c.Authorization.TLS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(c.Authorization.Host, strconv.Itoa(c.Authorization.Port))
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
