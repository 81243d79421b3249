// Package config handles loading imsgexport configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/wesm/imsgexport/internal/chatdb"
)

// EnvHome overrides the default home directory.
const EnvHome = "IMSGEXPORT_HOME"

// Config represents the imsgexport configuration.
type Config struct {
	Source SourceConfig `toml:"source"`
	Export ExportConfig `toml:"export"`
	Log    LogConfig    `toml:"log"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// SourceConfig locates the Messages database.
type SourceConfig struct {
	ChatDB string `toml:"chat_db"` // empty: chatdb.DefaultPath()
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	WindowDays int `toml:"window_days"` // lookback when --start-date is omitted
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // trace, debug, info, warn, error
}

// DefaultHome returns the default imsgexport home directory.
// Respects the IMSGEXPORT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv(EnvHome); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".imsgexport"
	}
	return filepath.Join(home, ".imsgexport")
}

func newDefaultConfig(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Export: ExportConfig{
			WindowDays: 7,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from path. An empty path means
// config.toml inside the home directory, which may be absent. An explicit
// path must exist; its parent directory becomes the home directory.
// homeDir, when set, overrides IMSGEXPORT_HOME.
func Load(path, homeDir string) (*Config, error) {
	explicit := path != ""

	switch {
	case homeDir != "":
		homeDir = expandPath(homeDir)
	case explicit:
		homeDir = filepath.Dir(expandPath(path))
	default:
		homeDir = DefaultHome()
	}

	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := newDefaultConfig(homeDir)
	cfg.configPath = path

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, decodeError(err)
	}

	cfg.Source.ChatDB = expandPath(cfg.Source.ChatDB)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Export.WindowDays < 0 {
		return fmt.Errorf("export.window_days must not be negative, got %d", c.Export.WindowDays)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// decodeError adds a hint for the most common TOML mistake: Windows paths
// in double quotes, where backslashes are escape sequences.
func decodeError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "escape") || strings.Contains(msg, "hexadecimal digits") {
		return fmt.Errorf("decode config: %w\n  hint: use forward slashes (C:/Users/me/chat.db) or single quotes ('C:\\Users\\me\\chat.db') for paths", err)
	}
	return fmt.Errorf("decode config: %w", err)
}

// ConfigFilePath returns the config file Load read, or would have read.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// ChatDBPath returns the configured chat.db, falling back to
// chatdb.DefaultPath().
func (c *Config) ChatDBPath() string {
	if c.Source.ChatDB != "" {
		return c.Source.ChatDB
	}
	return chatdb.DefaultPath()
}

// Window returns the default lookback used when no start date is given.
func (c *Config) Window() time.Duration {
	if c.Export.WindowDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Export.WindowDays) * 24 * time.Hour
}

// expandPath expands a leading ~ or ~/ to the user's home directory.
// ~user forms are left alone.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if len(path) > 1 && path[1] != '/' && path[1] != filepath.Separator {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
