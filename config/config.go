// Package config loads the server configuration from YAML with
// sensible defaults for local use.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	DBPath string `yaml:"db_path"`
	Port   int    `yaml:"port"`

	// AccessControl guards trace reading: "none" denies everyone,
	// "localhost" allows the loopback address, "any" allows all hosts.
	// Writing is never guarded.
	AccessControl string `yaml:"access_control"`

	// AllowExternal binds to all interfaces instead of loopback.
	AllowExternal bool `yaml:"allow_external"`

	// Debug enables verbose logging and forces loopback binding.
	Debug bool `yaml:"debug"`

	// SessionSecret signs session cookies. Generated at startup when
	// empty, which invalidates cookies across restarts.
	SessionSecret string `yaml:"session_secret"`

	// MaxObselCount caps unpaged, unwindowed read-backs.
	MaxObselCount int `yaml:"max_obsel_count"`

	LogLevel string `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "nots.db"
	}
	if c.Port <= 0 {
		c.Port = 5001
	}
	if c.AccessControl == "" {
		c.AccessControl = "none"
	}
	if c.SessionSecret == "" {
		buf := make([]byte, 32)
		rand.Read(buf)
		c.SessionSecret = hex.EncodeToString(buf)
	}
	if c.MaxObselCount <= 0 {
		c.MaxObselCount = 1000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Debug {
		c.AllowExternal = false
	}
}

// Validate rejects values outside the accepted vocabulary.
func (c *Config) Validate() error {
	switch c.AccessControl {
	case "none", "localhost", "any":
	default:
		return fmt.Errorf("config: unknown access_control %q", c.AccessControl)
	}
	return nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns the listen address honouring AllowExternal.
func (c *Config) Addr() string {
	host := "127.0.0.1"
	if c.AllowExternal {
		host = ""
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}
