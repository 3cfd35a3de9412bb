// Package config loads the awaitbench configuration from a YAML file,
// command-line flags and AWAITABLE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	awaitable "github.com/Swind/go-awaitable"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: pool.workers -> AWAITABLE_POOL_WORKERS.
const EnvPrefix = "AWAITABLE"

// Config is the full configuration of an awaitbench run.
type Config struct {
	Pool    PoolConfig    `yaml:"pool" mapstructure:"pool"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Bench   BenchConfig   `yaml:"bench" mapstructure:"bench"`
}

// PoolConfig mirrors awaitable.PoolConfig for the fields a file can set.
type PoolConfig struct {
	ID         string `yaml:"id" mapstructure:"id"`
	Workers    int    `yaml:"workers" mapstructure:"workers"`
	NamePrefix string `yaml:"name_prefix" mapstructure:"name_prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Namespace    string        `yaml:"namespace" mapstructure:"namespace"`
	Listen       string        `yaml:"listen" mapstructure:"listen"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// LogConfig controls log output. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// BenchConfig describes the simulated load.
type BenchConfig struct {
	Calls           int           `yaml:"calls" mapstructure:"calls"`
	Rate            float64       `yaml:"rate" mapstructure:"rate"`
	Work            time.Duration `yaml:"work" mapstructure:"work"`
	FailEvery       int           `yaml:"fail_every" mapstructure:"fail_every"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	Linger          time.Duration `yaml:"linger" mapstructure:"linger"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Pool: PoolConfig{
			ID: "awaitbench",
		},
		Metrics: MetricsConfig{
			Namespace:    "awaitable",
			Listen:       ":2112",
			PollInterval: time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Bench: BenchConfig{
			Calls:           100,
			Work:            10 * time.Millisecond,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

// LoadFile reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (if any), then AWAITABLE_* environment variables, then flags that were
// set explicitly on fs. The result is validated.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range Keys() {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("error while binding env for %s: %w", key, err)
		}
	}
	if fs != nil {
		var bindErr error
		// Only flags the user set override the file; flag defaults must not.
		fs.Visit(func(f *pflag.Flag) {
			if bindErr == nil && isKey(f.Name) {
				bindErr = v.BindPFlag(f.Name, f)
			}
		})
		if bindErr != nil {
			return cfg, fmt.Errorf("error while binding flags: %w", bindErr)
		}
	}

	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return cfg, fmt.Errorf("error while decoding overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Keys lists every configuration key in dotted form.
func Keys() []string {
	return []string{
		"pool.id", "pool.workers", "pool.name_prefix",
		"metrics.enabled", "metrics.namespace", "metrics.listen", "metrics.poll_interval",
		"log.level", "log.format", "log.file", "log.max_size_mb", "log.max_backups", "log.max_age_days", "log.compress",
		"bench.calls", "bench.rate", "bench.work", "bench.fail_every", "bench.shutdown_timeout", "bench.linger",
	}
}

func isKey(name string) bool {
	for _, k := range Keys() {
		if k == name {
			return true
		}
	}
	return false
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Pool.Workers < 0 {
		errs = append(errs, fmt.Errorf("pool.workers must be >= 0, got %d", c.Pool.Workers))
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen is required when metrics are enabled"))
	}
	if c.Metrics.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("metrics.poll_interval must be >= 0, got %v", c.Metrics.PollInterval))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	if c.Bench.Calls < 0 {
		errs = append(errs, fmt.Errorf("bench.calls must be >= 0, got %d", c.Bench.Calls))
	}
	if c.Bench.Rate < 0 {
		errs = append(errs, fmt.Errorf("bench.rate must be >= 0, got %v", c.Bench.Rate))
	}
	if c.Bench.Work < 0 {
		errs = append(errs, fmt.Errorf("bench.work must be >= 0, got %v", c.Bench.Work))
	}
	if c.Bench.FailEvery < 0 {
		errs = append(errs, fmt.Errorf("bench.fail_every must be >= 0, got %d", c.Bench.FailEvery))
	}
	if c.Bench.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("bench.shutdown_timeout must be > 0, got %v", c.Bench.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// PoolConfig converts the pool section to an awaitable.PoolConfig. Handlers
// and logger are left to the caller.
func (c Config) PoolConfig() awaitable.PoolConfig {
	return awaitable.PoolConfig{
		ID:         c.Pool.ID,
		Workers:    c.Pool.Workers,
		NamePrefix: c.Pool.NamePrefix,
	}
}

// YAML renders c as a YAML document.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
