// Package config loads daemon configuration from a YAML file with
// environment variable overrides (INKWELL_ prefix).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Vault     VaultConfig     `yaml:"vault"`
	Collab    CollabConfig    `yaml:"collab"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	// Port to bind on loopback; 0 asks the OS for a free port.
	Port            int `yaml:"port"`
	ReadTimeoutMS   int `yaml:"read_timeout_ms"`
	WriteTimeoutMS  int `yaml:"write_timeout_ms"`
	ShutdownGraceMS int `yaml:"shutdown_grace_ms"`
}

type VaultConfig struct {
	// Path is the vault directory; the note database lives inside it.
	Path string `yaml:"path"`
	// StateDir holds the daemon state file. Defaults to ~/.inkwell.
	StateDir string `yaml:"state_dir"`
}

type CollabConfig struct {
	// SessionSecret signs collaboration session tokens. Generated at
	// startup when empty.
	SessionSecret     string `yaml:"session_secret"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

type DiscoveryConfig struct {
	HealthTimeoutMS int `yaml:"health_timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            0,
			ReadTimeoutMS:   10000,
			WriteTimeoutMS:  10000,
			ShutdownGraceMS: 15000,
		},
		Collab: CollabConfig{
			SessionTTLMinutes: 60,
		},
		Discovery: DiscoveryConfig{
			HealthTimeoutMS: 2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills in paths that depend on the home directory.
func (c *Config) applyDefaults() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home dir: %w", err)
	}
	if c.Vault.StateDir == "" {
		c.Vault.StateDir = filepath.Join(home, ".inkwell")
	}
	if c.Vault.Path == "" {
		c.Vault.Path = filepath.Join(home, "Inkwell")
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in [0, 65535], got %d", c.Server.Port)
	}
	if c.Collab.SessionTTLMinutes <= 0 {
		return fmt.Errorf("collab session_ttl_minutes must be positive")
	}
	if !c.Logging.IsLogLevelValid() {
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides checks for environment variables with INKWELL_ prefix.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INKWELL_SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
	if v := os.Getenv("INKWELL_VAULT_PATH"); v != "" {
		cfg.Vault.Path = v
	}
	if v := os.Getenv("INKWELL_STATE_DIR"); v != "" {
		cfg.Vault.StateDir = v
	}
	if v := os.Getenv("INKWELL_COLLAB_SESSION_SECRET"); v != "" {
		cfg.Collab.SessionSecret = v
	}
	if v := os.Getenv("INKWELL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// DatabasePath returns the note database file inside the vault.
func (v *VaultConfig) DatabasePath() string {
	return filepath.Join(v.Path, "inkwell.db")
}

// GetReadTimeout returns the read timeout as a duration.
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// GetWriteTimeout returns the write timeout as a duration.
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// GetShutdownGrace returns the shutdown grace period as a duration.
func (s *ServerConfig) GetShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceMS) * time.Millisecond
}

// GetSessionTTL returns the collab session lifetime as a duration.
func (c *CollabConfig) GetSessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// GetHealthTimeout returns the discovery health-check timeout.
func (d *DiscoveryConfig) GetHealthTimeout() time.Duration {
	return time.Duration(d.HealthTimeoutMS) * time.Millisecond
}

// IsLogLevelValid checks if the log level is valid.
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}
