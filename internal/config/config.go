package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/duet-sh/duet/internal/logger"
	"github.com/duet-sh/duet/internal/slot"
)

// ServiceConfig is the per-slot configuration: where the service lives,
// which framework it is, and an optional verbatim start command used when
// framework is "custom".
type ServiceConfig struct {
	Path      string `toml:"path" mapstructure:"path"`
	Framework string `toml:"framework" mapstructure:"framework"`
	Command   string `toml:"command" mapstructure:"command"`
}

// Profile is a named bundle of per-slot command overrides.
type Profile struct {
	Frontend string `toml:"frontend" mapstructure:"frontend"`
	Backend  string `toml:"backend" mapstructure:"backend"`
}

// HistoryConfig selects the diagnostic event sink.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
}

// ServerConfig configures the optional status HTTP API.
type ServerConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	Addr     string `toml:"addr" mapstructure:"addr"`
	Engine   string `toml:"engine" mapstructure:"engine"` // "gin" or "echo"
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Config is the top-level duet.toml structure. Read-only to the core.
type Config struct {
	Frontend      ServiceConfig      `toml:"frontend" mapstructure:"frontend"`
	Backend       ServiceConfig      `toml:"backend" mapstructure:"backend"`
	ActiveProfile string             `toml:"active_profile" mapstructure:"active_profile"`
	Profiles      map[string]Profile `toml:"profiles" mapstructure:"profiles"`
	UseDocker     bool               `toml:"use_docker" mapstructure:"use_docker"`
	AutoRestart   bool               `toml:"auto_restart" mapstructure:"auto_restart"`
	Log           logger.Config      `toml:"log" mapstructure:"log"`
	History       HistoryConfig      `toml:"history" mapstructure:"history"`
	Server        ServerConfig       `toml:"server" mapstructure:"server"`

	// root is the directory the config file was loaded from; slot paths are
	// resolved relative to it.
	root string
}

// Load reads a duet.toml file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("auto_restart", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", true)
	v.SetDefault("server.addr", "127.0.0.1:7070")
	v.SetDefault("server.engine", "gin")
	v.SetDefault("server.base_path", "/api")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	c.root = filepath.Dir(abs)
	return &c, nil
}

// Root returns the workspace root (the config file's directory).
func (c *Config) Root() string { return c.root }

// SetRoot overrides the workspace root. Used when a Config is built in
// code rather than loaded from a file.
func (c *Config) SetRoot(dir string) { c.root = dir }

// Service returns the slot's service config.
func (c *Config) Service(kind slot.Kind) ServiceConfig {
	if kind == slot.Backend {
		return c.Backend
	}
	return c.Frontend
}

// WorkDir resolves the slot's working directory against the workspace root.
func (c *Config) WorkDir(kind slot.Kind) string {
	p := c.Service(kind).Path
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}

// ProfileOverride returns the active profile's stored command override for
// kind, or "" when no profile is active or it has no override for the slot.
func (c *Config) ProfileOverride(kind slot.Kind) string {
	if c.ActiveProfile == "" {
		return ""
	}
	p, ok := c.Profiles[c.ActiveProfile]
	if !ok {
		return ""
	}
	if kind == slot.Backend {
		return p.Backend
	}
	return p.Frontend
}

// Validate checks that both slots are configured well enough to start.
func (c *Config) Validate() error {
	if c.Frontend.Path == "" {
		return fmt.Errorf("frontend path not configured")
	}
	if c.Backend.Path == "" {
		return fmt.Errorf("backend path not configured")
	}
	return nil
}
