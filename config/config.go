// Package config loads host settings from YAML: which profile to drive guests
// with, custom profiles, runtime limits and logging.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Config is the root of a membrane host configuration file.
type Config struct {
	// Profile names the profile used to drive guests (built-in or declared below).
	Profile string `yaml:"profile" json:"profile,omitempty"`

	// Profiles declares custom profiles.
	Profiles []ProfileSpec `yaml:"profiles" json:"profiles,omitempty" validate:"dive"`

	Runtime RuntimeConfig `yaml:"runtime" json:"runtime,omitempty"`
	Log     LogConfig     `yaml:"log" json:"log,omitempty"`
	Call    CallConfig    `yaml:"call" json:"call,omitempty"`
}

// RuntimeConfig tunes the wazero runtime behind each membrane.
type RuntimeConfig struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages (0 = runtime default).
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages,omitempty" validate:"lte=65536"`

	// WASI toggles wasi_snapshot_preview1; unset means enabled.
	WASI *bool `yaml:"wasi" json:"wasi,omitempty"`

	// StartFunctions run at instantiation when exported.
	StartFunctions []string `yaml:"start_functions" json:"start_functions,omitempty" validate:"dive,required"`

	// ModuleName names guest instances.
	ModuleName string `yaml:"module_name" json:"module_name,omitempty"`

	// CacheDir enables the on-disk compilation cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir,omitempty"`
}

// LogConfig selects host log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level" json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" json:"format,omitempty" validate:"omitempty,oneof=console json"`
}

// CallConfig holds call-site policy for guest entry points.
type CallConfig struct {
	// Timeout bounds a single guest call; zero means no limit.
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Profile: "basic",
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Option is a functional option applied on top of a Config.
type Option func(*Config)

// WithProfile selects a profile by name.
func WithProfile(name string) Option {
	return func(c *Config) {
		c.Profile = name
	}
}

// WithTimeout sets the call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Call.Timeout = d
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.Log.Level = level
	}
}

// WithMemoryLimitPages caps guest memory.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) {
		c.Runtime.MemoryLimitPages = pages
	}
}

// New returns the default configuration with opts applied.
func New(opts ...Option) *Config {
	c := Default()
	c.Apply(opts...)
	return c
}

// Apply applies opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Validate checks field constraints and that every declared profile, and the
// selected one, resolve.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	reg, err := c.ProfileRegistry()
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Profile != "" {
		if _, ok := reg.Get(c.Profile); !ok {
			return fmt.Errorf("config validation failed: unknown profile %q (known: %v)", c.Profile, reg.List())
		}
	}
	return nil
}
