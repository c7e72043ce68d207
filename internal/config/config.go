package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const appName = "gopher-graphmap"

// LogFormat selects the log writer
type LogFormat string

const (
	LogFormatConsole LogFormat = "console" // human readable
	LogFormatJSON    LogFormat = "json"
)

// Config is the host configuration
type Config struct {
	// SessionPath is the YAML session to load. Relative paths resolve
	// against the config directory.
	SessionPath string `json:"session_path"`

	LogLevel  string    `json:"log_level"`
	LogFormat LogFormat `json:"log_format"`

	// MainLoopBuffer bounds pending deferred updates
	MainLoopBuffer int `json:"main_loop_buffer"`

	// AutoCreateControls adds unknown controls to the device during learn
	AutoCreateControls bool `json:"auto_create_controls"`

	// StartMapping starts every input once the session is loaded
	StartMapping bool `json:"start_mapping"`

	// HostInput reads hex encoded MIDI from stdin and forwards it to
	// devices bound to the host input
	HostInput bool `json:"host_input"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		SessionPath:    "session.yaml",
		LogLevel:       zerolog.InfoLevel.String(),
		LogFormat:      LogFormatConsole,
		MainLoopBuffer: 256,
		StartMapping:   true,
	}
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return filepath.Join(configHome, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the user config directory
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrapf(err, "read config %s", path)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrapf(err, "config %s", path)
		}
	}

	if cfg.SessionPath != "" && !filepath.IsAbs(cfg.SessionPath) {
		cfg.SessionPath = filepath.Join(filepath.Dir(path), cfg.SessionPath)
	}
	return cfg, nil
}

// Save writes the config to the user config directory
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating parent directories
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0644), "write config %s", path)
}

// Validate checks enumerated fields
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return errors.Errorf("log_format %q", c.LogFormat)
	}
	if c.MainLoopBuffer < 0 {
		return errors.Errorf("main_loop_buffer %d", c.MainLoopBuffer)
	}
	return nil
}

// Level returns the parsed log level, info when unset or invalid
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
