package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// globalConfig stores the configuration loaded with command-line overrides.
// This allows other packages to access the same configuration that was
// loaded by the daemon.
var (
	globalConfig *Config
	configMutex  sync.Mutex
)

// Config holds the daemon's configuration.
type Config struct {
	Socket  SocketConfig  `yaml:"socket" json:"socket"`
	Relay   RelayConfig   `yaml:"relay" json:"relay"`
	Crypto  CryptoConfig  `yaml:"crypto" json:"crypto"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoadOptions holds command-line override options.
type LoadOptions struct {
	Host          string
	Port          string
	LogLevel      string
	ConfigFile    string
	RelayEnabled  bool
	CryptoEnabled bool
}

// SocketConfig holds the bound UDP socket's configuration. These are daemon
// deployment knobs, distinct from the protocol constants (PacketTimeout,
// BareACKTimeout, MaxRetransmissions, ...) that live as Go constants
// alongside the connection engine.
type SocketConfig struct {
	Host             string        `yaml:"host" json:"host" env:"RUDP_HOST" default:"0.0.0.0"`
	Port             string        `yaml:"port" json:"port" env:"RUDP_PORT" default:"9000"`
	ReadBufferBytes  int           `yaml:"readBufferBytes" json:"readBufferBytes" env:"RUDP_READ_BUFFER_BYTES" default:"1048576"`
	WriteBufferBytes int           `yaml:"writeBufferBytes" json:"writeBufferBytes" env:"RUDP_WRITE_BUFFER_BYTES" default:"1048576"`
	PollInterval     time.Duration `yaml:"pollInterval" json:"pollInterval" env:"RUDP_POLL_INTERVAL" default:"100ms"`
}

// RelayConfig controls whether this node forwards datagrams addressed to a
// peer other than its own public address, and what address it advertises
// as that public endpoint.
type RelayConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"RUDP_RELAY_ENABLED" default:"false"`
	PublicIP string `yaml:"publicIP" json:"publicIP" env:"RUDP_PUBLIC_IP" default:""`
}

// CryptoConfig controls whether new connections negotiate a confidential
// channel (Section 4.7) or run in plaintext.
type CryptoConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"RUDP_CRYPTO_ENABLED" default:"false"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"RUDP_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"RUDP_LOG_FORMAT" default:"text"`
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	return LoadWithOverrides(LoadOptions{})
}

// LoadWithOverrides loads configuration from an optional config file,
// environment variables, and finally command-line overrides, in that
// ascending order of precedence.
func LoadWithOverrides(opts LoadOptions) (*Config, error) {
	config := defaultConfig()

	if opts.ConfigFile != "" {
		if err := loadFile(opts.ConfigFile, config); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	config.Socket.Host = getOverrideOrEnv(opts.Host, "RUDP_HOST", config.Socket.Host)
	config.Socket.Port = getOverrideOrEnv(opts.Port, "RUDP_PORT", config.Socket.Port)
	config.Socket.ReadBufferBytes = getIntWithDefault("RUDP_READ_BUFFER_BYTES", config.Socket.ReadBufferBytes)
	config.Socket.WriteBufferBytes = getIntWithDefault("RUDP_WRITE_BUFFER_BYTES", config.Socket.WriteBufferBytes)
	config.Socket.PollInterval = getDurationWithDefault("RUDP_POLL_INTERVAL", config.Socket.PollInterval)

	config.Relay.Enabled = getBoolWithDefault("RUDP_RELAY_ENABLED", config.Relay.Enabled) || opts.RelayEnabled
	config.Relay.PublicIP = getEnvWithDefault("RUDP_PUBLIC_IP", config.Relay.PublicIP)

	config.Crypto.Enabled = getBoolWithDefault("RUDP_CRYPTO_ENABLED", config.Crypto.Enabled) || opts.CryptoEnabled

	config.Logging.Level = getOverrideOrEnv(opts.LogLevel, "RUDP_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnvWithDefault("RUDP_LOG_FORMAT", config.Logging.Format)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	configMutex.Lock()
	globalConfig = config
	configMutex.Unlock()

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Socket: SocketConfig{
			Host:             "0.0.0.0",
			Port:             "9000",
			ReadBufferBytes:  1 << 20,
			WriteBufferBytes: 1 << 20,
			PollInterval:     100 * time.Millisecond,
		},
		Relay: RelayConfig{
			Enabled:  false,
			PublicIP: "",
		},
		Crypto: CryptoConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func loadFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, into)
}

// GetGlobalConfig returns the globally stored configuration loaded by the
// daemon. Library packages should prefer explicit injection; this exists
// for cmd/rudpd's convenience, mirroring logging.Default().
func GetGlobalConfig() *Config {
	configMutex.Lock()
	defer configMutex.Unlock()
	return globalConfig
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Socket.Port == "" {
		return fmt.Errorf("socket port cannot be empty")
	}
	if port, err := strconv.Atoi(c.Socket.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid socket port: %s", c.Socket.Port)
	}

	if c.Socket.ReadBufferBytes <= 0 || c.Socket.WriteBufferBytes <= 0 {
		return fmt.Errorf("socket buffer sizes must be positive")
	}

	if c.Socket.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.Relay.Enabled && c.Relay.PublicIP == "" {
		return fmt.Errorf("relay.publicIP must be set when relay is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Helper functions for environment variable parsing.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getOverrideOrEnv returns the command-line override value, the
// environment value, or the default, in that order of preference.
func getOverrideOrEnv(override, envKey, defaultValue string) string {
	if override != "" {
		return override
	}
	return getEnvWithDefault(envKey, defaultValue)
}
