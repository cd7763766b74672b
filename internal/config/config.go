// Package config loads the tool configuration from defaults, an optional
// YAML file and GEEKTOOLS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"geektools.dev/cli/internal/core/domain"
)

const (
	// EnvPrefix prefixes every configuration environment variable
	EnvPrefix = "GEEKTOOLS_"
	// DefaultHomeName is the directory created under the user's home
	DefaultHomeName = ".geektools"
	// FileName is the configuration file looked up inside the home directory
	FileName = "config.yaml"
)

// RetryConfig is the YAML form of domain.RetryPolicy
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// Config holds every setting the CLI needs
type Config struct {
	HomeDir        string        `yaml:"home_dir"`
	PluginsDir     string        `yaml:"plugins_dir"`
	ScriptsDir     string        `yaml:"scripts_dir"`
	TempDir        string        `yaml:"temp_dir"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	Debug          bool          `yaml:"debug"`
	MarketplaceURL string        `yaml:"marketplace_url"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	ScanDirs       []string      `yaml:"scan_dirs"`
	Retry          RetryConfig   `yaml:"retry"`

	// Source is the file the configuration was read from, if any.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration. Directories are left empty
// and resolved relative to HomeDir by Load.
func Default() *Config {
	policy := domain.DefaultRetryPolicy()
	return &Config{
		LogLevel:    "warn",
		LogFormat:   "text",
		HTTPTimeout: 5 * time.Minute,
		Retry: RetryConfig{
			MaxAttempts:   policy.MaxAttempts,
			InitialDelay:  policy.InitialDelay,
			MaxDelay:      policy.MaxDelay,
			BackoffFactor: policy.BackoffFactor,
		},
	}
}

// Load builds the configuration. An explicit path must exist; without one,
// GEEKTOOLS_CONFIG or <home>/config.yaml is read when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "CONFIG")
		explicit = path != ""
	}
	if !explicit {
		home, err := defaultHome()
		if err != nil {
			return nil, err
		}
		if h := os.Getenv(EnvPrefix + "HOME"); h != "" {
			home = expandHome(h)
		}
		path = filepath.Join(home, FileName)
	}

	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.resolveDirs(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	f, err := os.Open(expandHome(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Source = path
	return nil
}

// loadEnv applies GEEKTOOLS_* variables on top of the file values
func (c *Config) loadEnv() error {
	var errs []error
	add := func(key string, apply func(string) error) {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			return
		}
		if err := apply(v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		}
	}
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}

	add("HOME", str(&c.HomeDir))
	add("PLUGINS_DIR", str(&c.PluginsDir))
	add("WORK_DIR", str(&c.ScriptsDir))
	add("TEMP_DIR", str(&c.TempDir))
	add("LOG_LEVEL", str(&c.LogLevel))
	add("LOG_FORMAT", str(&c.LogFormat))
	add("MARKETPLACE_URL", str(&c.MarketplaceURL))
	add("DEBUG", func(v string) (err error) { c.Debug, err = strconv.ParseBool(v); return })
	add("HTTP_TIMEOUT", func(v string) (err error) { c.HTTPTimeout, err = time.ParseDuration(v); return })
	add("SCAN_DIRS", func(v string) error { c.ScanDirs = filepath.SplitList(v); return nil })
	add("RETRY_MAX_ATTEMPTS", func(v string) (err error) { c.Retry.MaxAttempts, err = strconv.Atoi(v); return })
	add("RETRY_INITIAL_DELAY", func(v string) (err error) { c.Retry.InitialDelay, err = time.ParseDuration(v); return })
	add("RETRY_MAX_DELAY", func(v string) (err error) { c.Retry.MaxDelay, err = time.ParseDuration(v); return })
	add("RETRY_BACKOFF_FACTOR", func(v string) (err error) { c.Retry.BackoffFactor, err = strconv.ParseFloat(v, 64); return })

	return errors.Join(errs...)
}

func (c *Config) resolveDirs() error {
	if c.HomeDir == "" {
		home, err := defaultHome()
		if err != nil {
			return err
		}
		c.HomeDir = home
	}
	c.HomeDir = expandHome(c.HomeDir)

	resolve := func(dir *string, fallback string) {
		if *dir == "" {
			*dir = fallback
		}
		*dir = expandHome(*dir)
	}
	resolve(&c.PluginsDir, filepath.Join(c.HomeDir, "plugins"))
	resolve(&c.ScriptsDir, filepath.Join(c.HomeDir, "scripts"))
	resolve(&c.TempDir, os.TempDir())
	for i, dir := range c.ScanDirs {
		c.ScanDirs[i] = expandHome(dir)
	}
	return nil
}

// Validate checks the settings are usable
func (c *Config) Validate() error {
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("invalid retry settings: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout cannot be negative")
	}
	return nil
}

// RetryPolicy converts the retry settings for the recovery executor
func (c *Config) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:   c.Retry.MaxAttempts,
		InitialDelay:  c.Retry.InitialDelay,
		MaxDelay:      c.Retry.MaxDelay,
		BackoffFactor: c.Retry.BackoffFactor,
	}
}

// DefaultScanDirs lists where `plugins scan` looks when none are configured
func (c *Config) DefaultScanDirs() []string {
	if len(c.ScanDirs) > 0 {
		return c.ScanDirs
	}
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "Downloads"), filepath.Join(home, "Desktop"), filepath.Join(home, "Documents"))
	}
	return dirs
}

func defaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, DefaultHomeName), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
