// Package config handles the XDG configuration directory, file paths and settings.
package config

import (
	"os"
	"path/filepath"

	"taskctl/internal/session"
)

const (
	// AppName is the application directory name.
	AppName = "taskctl"

	// SessionFile is the persisted session record filename.
	SessionFile = "auth-storage.json"

	// CacheFile is the persisted query cache filename.
	CacheFile = "cache.json"

	// SettingsFile is the optional settings filename.
	SettingsFile = "config.yaml"

	// EnvFile is the optional dotenv filename.
	EnvFile = ".env"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are loaded from config.yaml and the environment.
	Settings Settings
}

// New creates a new Config with the default or specified config directory
// and loads its settings.
// If configDir is empty, uses XDG_CONFIG_HOME/taskctl or $HOME/.config/taskctl.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}

	settings, err := LoadSettings(cfg.SettingsPath(), cfg.EnvPath())
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SessionPath returns the path to the persisted session record.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// CachePath returns the path to the persisted query cache.
func (c *Config) CachePath() string {
	return filepath.Join(c.Dir, CacheFile)
}

// SettingsPath returns the path to config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// EnvPath returns the path to the config directory's .env file.
func (c *Config) EnvPath() string {
	return filepath.Join(c.Dir, EnvFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasSession checks if the persisted session record holds a token.
// A signed-out record is kept on disk as anonymous.
func (c *Config) HasSession() bool {
	st, err := session.NewFileStore(c.SessionPath()).Load()
	return err == nil && st.Token != ""
}
