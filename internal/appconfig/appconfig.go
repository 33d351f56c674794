// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting harness configuration.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mwiater/daemonbench/internal/benchmark"
	"github.com/mwiater/daemonbench/internal/lifecycle"
)

const (
	// DefaultConfigPath is the default path to the harness configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is the configuration file picked up from the working directory.
	legacyConfigPath = "daemonbench.json"
	// EnvPrefix prefixes environment overrides, e.g. DAEMONBENCH_ITERATIONS.
	EnvPrefix = "DAEMONBENCH"

	defaultIterations = 10
	quickIterations   = 3
	defaultQuery      = "ls -la"
	defaultLogFile    = "daemonbench.log"
)

// DefaultTargetEnv makes the target record its own timing for every process,
// including the short-lived direct-mode ones.
func DefaultTargetEnv() []string {
	return []string{"AKA_BENCHMARK=1", "RUST_LOG=info"}
}

// Config represents the harness configuration after flags, environment and
// config file have been merged.
type Config struct {
	Binary         string   `json:"binary,omitempty"`
	TargetConfig   string   `json:"targetConfig,omitempty"`
	TargetEnv      []string `json:"targetEnv,omitempty"`
	Queries        []string `json:"queries,omitempty"`
	QueriesFile    string   `json:"queriesFile,omitempty"`
	Iterations     int      `json:"iterations,omitempty"`
	Quick          bool     `json:"quick"`
	Timeout        string   `json:"timeout,omitempty"`
	CommandTimeout string   `json:"commandTimeout,omitempty"`
	Pause          string   `json:"pause,omitempty"`
	StartSettle    string   `json:"startSettle,omitempty"`
	StopSettle     string   `json:"stopSettle,omitempty"`
	Ordering       string   `json:"ordering,omitempty"`
	PhaseOrder     string   `json:"phaseOrder,omitempty"`
	OutputDir      string   `json:"outputDir,omitempty"`
	Textfile       string   `json:"textfile,omitempty"`
	LogFile        string   `json:"logFile,omitempty"`
	Debug          bool     `json:"debug"`
	TUI            bool     `json:"tui"`
	JSON           bool     `json:"json"`
	ConfigPath     string   `json:"-"`
}

// IterationCount returns the iterations per query per mode. Quick mode wins
// over an explicit count.
func (c Config) IterationCount() int {
	if c.Quick {
		return quickIterations
	}
	if c.Iterations <= 0 {
		return defaultIterations
	}
	return c.Iterations
}

// QueryTimeout returns the per-invocation timeout for measured queries.
func (c Config) QueryTimeout() time.Duration {
	return durationOr(c.Timeout, lifecycle.DefaultCommandTimeout)
}

// CommandTimeoutDuration returns the timeout for lifecycle and diagnostics commands.
func (c Config) CommandTimeoutDuration() time.Duration {
	return durationOr(c.CommandTimeout, lifecycle.DefaultCommandTimeout)
}

// PauseDuration returns the pause between consecutive invocations.
func (c Config) PauseDuration() time.Duration {
	return durationOr(c.Pause, benchmark.DefaultPause)
}

func (c Config) StartSettleDuration() time.Duration {
	return durationOr(c.StartSettle, lifecycle.DefaultStartSettle)
}

func (c Config) StopSettleDuration() time.Duration {
	return durationOr(c.StopSettle, lifecycle.DefaultStopSettle)
}

// OutputDirectory returns where the export files are written.
func (c Config) OutputDirectory() string {
	if dir := strings.TrimSpace(c.OutputDir); dir != "" {
		return dir
	}
	return "."
}

// LogFilePath returns the path to the harness log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return defaultLogFile
}

// TargetEnvironment returns the KEY=VALUE pairs overlaid on the environment
// of every target invocation. An empty list selects DefaultTargetEnv.
func (c Config) TargetEnvironment() []string {
	var out []string
	for _, kv := range c.TargetEnv {
		if kv = strings.TrimSpace(kv); kv != "" {
			out = append(out, kv)
		}
	}
	if len(out) == 0 {
		return DefaultTargetEnv()
	}
	return out
}

// QueryList returns the configured queries followed by those of the queries
// file. With neither set it returns the single default query.
func (c Config) QueryList() ([]string, error) {
	var out []string
	for _, q := range c.Queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if strings.TrimSpace(c.QueriesFile) != "" {
		fromFile, err := LoadQueries(c.QueriesFile)
		if err != nil {
			return nil, err
		}
		out = append(out, fromFile...)
	}
	if len(out) == 0 {
		return []string{defaultQuery}, nil
	}
	return out, nil
}

// Validate reports every malformed value at once.
func (c Config) Validate() error {
	var errs []error
	if c.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must not be negative, got %d", c.Iterations))
	}
	for _, d := range []struct{ key, value string }{
		{"timeout", c.Timeout},
		{"commandTimeout", c.CommandTimeout},
		{"pause", c.Pause},
		{"startSettle", c.StartSettle},
		{"stopSettle", c.StopSettle},
	} {
		if strings.TrimSpace(d.value) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
			continue
		}
		if v < 0 || (v == 0 && d.key != "pause") {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.key, d.value))
		}
	}
	for _, kv := range c.TargetEnv {
		if kv = strings.TrimSpace(kv); kv != "" && !strings.Contains(kv[1:], "=") {
			errs = append(errs, fmt.Errorf("targetEnv entry %q is not KEY=VALUE", kv))
		}
	}
	if _, err := benchmark.ParseOrdering(c.Ordering); err != nil {
		errs = append(errs, err)
	}
	if _, err := benchmark.ParsePhaseOrder(c.PhaseOrder); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunOptions converts the configuration into orchestrator options. Callbacks
// and clocks are left for the caller.
func (c Config) RunOptions() (benchmark.Options, error) {
	if err := c.Validate(); err != nil {
		return benchmark.Options{}, fmt.Errorf("invalid configuration: %w", err)
	}
	queries, err := c.QueryList()
	if err != nil {
		return benchmark.Options{}, err
	}
	ordering, _ := benchmark.ParseOrdering(c.Ordering)
	phaseOrder, _ := benchmark.ParsePhaseOrder(c.PhaseOrder)
	return benchmark.Options{
		Binary:         strings.TrimSpace(c.Binary),
		ConfigPath:     strings.TrimSpace(c.TargetConfig),
		Queries:        queries,
		Iterations:     c.IterationCount(),
		Timeout:        c.QueryTimeout(),
		CommandTimeout: c.CommandTimeoutDuration(),
		Pause:          c.PauseDuration(),
		StartSettle:    c.StartSettleDuration(),
		StopSettle:     c.StopSettleDuration(),
		Ordering:       ordering,
		PhaseOrder:     phaseOrder,
	}, nil
}

// Load reads the configuration file at path into v and decodes the merged
// settings. An empty path searches the default and legacy locations, and
// finding neither is not an error: flags and defaults still apply. An
// explicit path must exist.
func Load(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	explicit := strings.TrimSpace(path) != "" && path != DefaultConfigPath
	used := ""
	if explicit {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found at %q", path)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
		}
		used = path
	} else {
		for _, candidate := range []string{DefaultConfigPath, legacyConfigPath} {
			if _, err := os.Stat(candidate); err == nil {
				used = candidate
				break
			}
		}
	}

	if used != "" {
		v.SetConfigFile(used)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("could not read config file %q: %w", used, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = used
	return cfg, nil
}

func durationOr(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
