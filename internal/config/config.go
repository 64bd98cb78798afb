package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "QUESTLINE"
	dirName   = ".questline"

	ReconnectFixed       = "fixed"
	ReconnectExponential = "exponential"
)

// Config is the resolved client configuration.
type Config struct {
	ServerURL      string        `mapstructure:"server_url"`
	Cookie         string        `mapstructure:"cookie"`
	LogLevel       string        `mapstructure:"log_level"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Reconnect      Reconnect     `mapstructure:"reconnect"`
}

// Reconnect controls how the live channel is re-established after it drops.
type Reconnect struct {
	Mode       string        `mapstructure:"mode"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// SetDefaults registers every key so environment overrides resolve on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8000")
	v.SetDefault("cookie", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", int64(1<<20))
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("reconnect.mode", ReconnectFixed)
	v.SetDefault("reconnect.base_delay", 3*time.Second)
	v.SetDefault("reconnect.max_delay", 30*time.Second)
	v.SetDefault("reconnect.max_retries", 5)
}

// Init points v at the config file (explicit path, or config.yaml in the data
// dir or working dir) and environment. A missing config file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DataDir()
		if err != nil {
			return err
		}
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if cfgFile == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and normalizes the server URL.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid server_url %q", c.ServerURL)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("server_url must be http or https, got %q", u.Scheme)
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	switch c.Reconnect.Mode {
	case ReconnectFixed, ReconnectExponential:
	default:
		return fmt.Errorf("reconnect.mode must be %q or %q, got %q", ReconnectFixed, ReconnectExponential, c.Reconnect.Mode)
	}
	if c.Reconnect.MaxRetries < 0 {
		return fmt.Errorf("reconnect.max_retries must not be negative")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be positive")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		c.Reconnect.MaxDelay = c.Reconnect.BaseDelay
	}
	return nil
}

// DataDir returns ~/.questline, creating it if needed.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}
