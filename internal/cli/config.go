package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the client configuration file.
type Config struct {
	ServerURL   string `yaml:"server_url"`
	APIToken    string `yaml:"api_token"`
	StorePath   string `yaml:"store_path"`
	HorizonDays int    `yaml:"horizon_days"`
	LogLevel    string `yaml:"log_level,omitempty"`
}

// DefaultConfigPath is ~/.config/choresync/config.yaml on Linux and the
// platform equivalent elsewhere.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "choresync.yaml"
	}
	return filepath.Join(dir, "choresync", "config.yaml")
}

// LoadConfig reads path. A missing file yields an empty config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory. The file holds the API
// token so it is private to the user.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// withDefaults fills the store path next to the config file.
func (c Config) withDefaults(configPath string) Config {
	if c.StorePath == "" {
		c.StorePath = filepath.Join(filepath.Dir(configPath), "household.json")
	}
	return c
}
