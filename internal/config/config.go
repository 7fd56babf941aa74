// Package config loads the indexer configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the indexer configuration. CLI flags override file values.
type Config struct {
	// Source is the directory holding the content tree.
	Source string `yaml:"source" validate:"required"`

	// MetaRoot, when set, makes every top-level folder beneath it a package
	// root. Relative to Source.
	MetaRoot *string `yaml:"meta_root,omitempty"`

	// Roots are package roots registered by hand. Relative to Source.
	Roots []string `yaml:"roots,omitempty" validate:"dive,required"`

	// Debounce is the per-file quiet period before a change is applied.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`

	// Database is the optional SQLite index path.
	Database string `yaml:"database,omitempty"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Workers bounds parse concurrency during a full scan.
	Workers int `yaml:"workers" validate:"min=1,max=64"`

	// Ignore holds glob patterns matched against each path segment.
	Ignore []string `yaml:"ignore" validate:"dive,glob"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("glob", validateGlob)
}

func validateGlob(fl validator.FieldLevel) bool {
	_, err := path.Match(fl.Field().String(), "")
	return err == nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Source:   ".",
		Debounce: 150 * time.Millisecond,
		LogLevel: "info",
		Workers:  4,
		Ignore:   []string{".git", ".obsidian", "*.swp", "*.tmp"},
	}
}

// Load reads the YAML file at p over the defaults and validates the result.
func Load(p string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(p)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", p, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", p, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", p, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return err
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Ignored reports whether any segment of the slash path p matches an
// ignore pattern.
func (c *Config) Ignored(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		for _, pattern := range c.Ignore {
			if ok, _ := path.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}
