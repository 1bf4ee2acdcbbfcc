// SPDX-License-Identifier: MPL-2.0

// Package config loads the krail program configuration: extra discovery
// search paths and UI defaults. Configuration lives in a YAML file under
// the platform config directory and everything has a working default, so
// a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const (
	// AppName is the program name; it also names the project config file
	// (krail.yml / krail.yaml) looked up by the project collaborator.
	AppName = "krail"
	// ConfigFileName is the program config file name without extension.
	ConfigFileName = "config"
)

// Config is the program-level configuration.
type Config struct {
	// SearchPaths are extra root directories scanned by discovery, after
	// the working directory's commands/ dir and the user commands dir.
	SearchPaths []string `mapstructure:"search_paths"`
	UI          UIConfig `mapstructure:"ui"`
}

// UIConfig holds output-related settings.
type UIConfig struct {
	// Debug enables debug logging and stack traces on error paths.
	Debug bool `mapstructure:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// configDirOverride lets tests redirect the config directory.
var configDirOverride string

// SetConfigDirOverride redirects config lookup, for tests.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// ConfigDir returns the krail configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// CommandsDir returns the directory for user-defined command modules,
// ~/.krail/cmds on all platforms.
func CommandsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName, "cmds"), nil
}

// Load reads the program configuration, merging the YAML config file over
// the defaults. A missing config file yields the defaults without error.
func Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("search_paths", defaults.SearchPaths)
	v.SetDefault("ui.debug", defaults.UI.Debug)

	cfgDir, err := ConfigDir()
	if err != nil {
		return nil, err
	}

	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cfgDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
