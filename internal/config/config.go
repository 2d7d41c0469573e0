// Package config loads the desops.yaml file used by the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/desops/internal/logging"
	"github.com/aretw0/desops/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "desops.yaml"

// Config is the CLI configuration. Flags override it.
type Config struct {
	Log    LogConfig     `yaml:"log" json:"log"`
	Budget domain.Budget `yaml:"budget" json:"budget"`
	Server ServerConfig  `yaml:"server" json:"server"`
	Store  StoreConfig   `yaml:"store" json:"store"`
}

// LogConfig selects the logger level and handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// ServerConfig configures `desops serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// StoreConfig selects the automaton store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend" json:"backend"` // memory | redis
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: string(logging.FormatText)},
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Backend: "memory",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "desops:automaton:"},
		},
	}
}

// Load reads a configuration file (YAML or JSON) on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values the CLI cannot default.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch logging.Format(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	switch c.Store.Backend {
	case "memory", "redis", "":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Budget.MaxStates < 0 || c.Budget.Timeout < 0 {
		return errors.New("budget limits must not be negative")
	}
	return nil
}
