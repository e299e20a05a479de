package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gauditech/gaudi-sub004/pkg/gaudi"
)

// Config represents the gaudi.yaml configuration file.
type Config struct {
	DatabaseURL    string        `yaml:"database_url"`
	Dialect        string        `yaml:"dialect"`
	BlueprintDir   string        `yaml:"blueprint_dir"`
	DefinitionFile string        `yaml:"definition_file"`
	Address        string        `yaml:"address"`
	HookTimeout    time.Duration `yaml:"hook_timeout"`
	LogLevel       string        `yaml:"log_level"`
	RuntimeDir     string        `yaml:"runtime_dir"`
}

// Environment variables overriding the config file.
const (
	envDatabaseURL  = "DATABASE_URL"
	envBlueprintDir = "GAUDI_BLUEPRINT_DIR"
	envAddress      = "GAUDI_ADDRESS"
)

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file > defaults
//
// A missing config file is only an error when its path was given explicitly.
func loadConfig(flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		BlueprintDir: "./blueprint",
		Address:      ":8080",
		LogLevel:     "info",
	}

	path, _ := flags.GetString("config")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.expandEnv()
	case errors.Is(err, os.ErrNotExist) && !flags.Changed("config"):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if v := os.Getenv(envDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(envBlueprintDir); v != "" {
		cfg.BlueprintDir = v
	}
	if v := os.Getenv(envAddress); v != "" {
		cfg.Address = v
	}

	for name, dst := range map[string]*string{
		"database-url":  &cfg.DatabaseURL,
		"blueprint-dir": &cfg.BlueprintDir,
		"log-level":     &cfg.LogLevel,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	return cfg, nil
}

// expandEnv expands ${VAR} patterns in every string setting.
func (c *Config) expandEnv() {
	for _, s := range []*string{
		&c.DatabaseURL, &c.Dialect, &c.BlueprintDir, &c.DefinitionFile,
		&c.Address, &c.LogLevel, &c.RuntimeDir,
	} {
		*s = os.Expand(*s, os.Getenv)
	}
}

// options returns the client options of c.
func (c *Config) options() []gaudi.Option {
	opts := []gaudi.Option{
		gaudi.WithBlueprintDir(c.BlueprintDir),
		gaudi.WithDefinitionFile(c.DefinitionFile),
		gaudi.WithRuntimeDir(c.RuntimeDir),
	}
	if c.DatabaseURL != "" {
		opts = append(opts, gaudi.WithDatabaseURL(c.DatabaseURL))
	}
	if c.Dialect != "" {
		opts = append(opts, gaudi.WithDialect(c.Dialect))
	}
	if c.HookTimeout > 0 {
		opts = append(opts, gaudi.WithHookTimeout(c.HookTimeout))
	}
	return opts
}

// newClient creates a client connected to the configured database.
func newClient(cfg *Config) (*gaudi.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, gaudi.ErrMissingDatabaseURL
	}
	return gaudi.New(cfg.options()...)
}

// newSchemaOnlyClient creates a client that only reads blueprints.
func newSchemaOnlyClient(cfg *Config) (*gaudi.Client, error) {
	return gaudi.New(append(cfg.options(), gaudi.WithSchemaOnly())...)
}
