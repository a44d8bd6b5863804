package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config drives the CLI. Values come from an optional YAML file, then
// STOREFRONT_* environment variables, then flags.
type Config struct {
	Theme   ThemeConfig   `yaml:"theme"`
	Store   StoreConfig   `yaml:"store"`
	Request RequestConfig `yaml:"request"`
	Log     LogConfig     `yaml:"log"`
}

// ThemeConfig locates the theme. SQLite wins when both are set.
type ThemeConfig struct {
	// Dir is a directory containing the theme/ tree.
	Dir    string `yaml:"dir" env:"STOREFRONT_THEME_DIR"`
	SQLite string `yaml:"sqlite" env:"STOREFRONT_SQLITE_DSN"`
}

type StoreConfig struct {
	Name          string `yaml:"name" env:"STOREFRONT_STORE_NAME"`
	Currency      string `yaml:"currency" env:"STOREFRONT_CURRENCY"`
	Locale        string `yaml:"locale" env:"STOREFRONT_LOCALE"`
	Compatibility *bool  `yaml:"compatibility" env:"STOREFRONT_COMPATIBILITY"`
	AssetBase     string `yaml:"asset_base" env:"STOREFRONT_ASSET_BASE"`
}

type RequestConfig struct {
	Path string `yaml:"path" env:"STOREFRONT_REQUEST_PATH"`
	Host string `yaml:"host" env:"STOREFRONT_REQUEST_HOST"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"STOREFRONT_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"STOREFRONT_LOG_JSON"`
}

// LoadConfig reads path (when set) and applies environment overrides. A .env
// file beside the config, or in the working directory, is loaded first.
func LoadConfig(path string) (*Config, error) {
	envFile := ".env"
	if path != "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Request.Path == "" {
		c.Request.Path = "/"
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
}

// Validate reports missing or conflicting settings.
func (c *Config) Validate() error {
	var errs []error
	dir := strings.TrimSpace(c.Theme.Dir)
	dsn := strings.TrimSpace(c.Theme.SQLite)
	if dir == "" && dsn == "" {
		errs = append(errs, errors.New("theme.dir or theme.sqlite is required"))
	}
	if c.Store.Currency != "" && len(c.Store.Currency) != 3 {
		errs = append(errs, fmt.Errorf("store.currency %q is not an ISO 4217 code", c.Store.Currency))
	}
	if !strings.HasPrefix(c.Request.Path, "/") {
		errs = append(errs, fmt.Errorf("request.path %q must start with /", c.Request.Path))
	}
	return errors.Join(errs...)
}

// StoreSettings returns the store settings passed to the theme.
func (c *Config) StoreSettings() map[string]any {
	out := map[string]any{}
	if c.Store.Name != "" {
		out["name"] = c.Store.Name
	}
	if c.Store.Currency != "" {
		out["currency"] = strings.ToUpper(c.Store.Currency)
	}
	if c.Store.Locale != "" {
		out["locale"] = c.Store.Locale
	}
	return out
}
