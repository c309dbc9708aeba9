// Package config loads category definitions and processing settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codeGROOVE-dev/horas/pkg/category"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCategory wraps problems found while building categories from config.
var ErrInvalidCategory = errors.New("invalid category configuration")

// DefaultDateLayouts are tried in order when a date cell is text. Day comes first.
var DefaultDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// Config is the effective configuration of a run.
type Config struct {
	DateLayouts []string         `mapstructure:"date_layouts" yaml:"date_layouts"`
	Categories  []CategoryConfig `mapstructure:"categories" yaml:"categories"`
	Workers     int              `mapstructure:"workers" yaml:"workers"`
}

// CategoryConfig describes one category. An empty Stop list means every code
// that is not a start code closes an interval.
type CategoryConfig struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Label string `mapstructure:"label" yaml:"label,omitempty"`
	Start []int  `mapstructure:"start" yaml:"start,flow"`
	Stop  []int  `mapstructure:"stop" yaml:"stop,flow,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{DateLayouts: append([]string(nil), DefaultDateLayouts...)}
	for _, c := range category.Defaults() {
		cfg.Categories = append(cfg.Categories, fromCategory(c))
	}
	return cfg
}

// Load reads the YAML file at path (optional) and applies HORAS_* environment
// overrides. Missing sections fall back to the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HORAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("workers", 0)
	v.SetDefault("date_layouts", DefaultDateLayouts)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = append([]string(nil), DefaultDateLayouts...)
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = Default().Categories
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}

	// Surface category problems at load time rather than at first use.
	if _, err := cfg.BuildCategories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildCategories converts the configured categories, rejecting duplicates.
func (c *Config) BuildCategories() ([]category.Category, error) {
	seen := make(map[string]bool, len(c.Categories))
	cats := make([]category.Category, 0, len(c.Categories))

	for i, cc := range c.Categories {
		name := strings.TrimSpace(cc.Name)
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidCategory, name)
		}
		seen[name] = true

		var (
			cat category.Category
			err error
		)
		if len(cc.Stop) == 0 {
			cat, err = category.New(name, cc.Label, cc.Start...)
		} else {
			cat, err = category.NewExplicit(name, cc.Label, cc.Start, cc.Stop)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: categories[%d]: %w", ErrInvalidCategory, i, err)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// Dump writes cfg as YAML.
func Dump(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

func fromCategory(c category.Category) CategoryConfig {
	return CategoryConfig{
		Name:  c.Name,
		Label: c.Label,
		Start: c.StartCodes(),
		Stop:  c.StopCodes(),
	}
}
