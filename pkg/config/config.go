// Package config provides YAML-based project configuration for modtest.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/modtest/pkg/gitlib"
	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
)

// Sentinel validation errors.
var (
	ErrInvalidFetchMode   = errors.New("invalid git fetch mode")
	ErrInvalidLockTimeout = errors.New("git lock timeout must not be negative")
	ErrInvalidBackend     = errors.New("invalid log store backend")
	ErrMissingStorePath   = errors.New("file log store requires a path")
	ErrInvalidLogLevel    = errors.New("invalid logging level")
	ErrInvalidLogFormat   = errors.New("invalid logging format")
	ErrInvalidPolicy      = errors.New("invalid evaluation policy")
)

// Config is the top-level configuration struct for modtest.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Git        GitConfig        `mapstructure:"git"`
	Modules    ModulesConfig    `mapstructure:"modules"`
	Server     ServerConfig     `mapstructure:"server"`
	LogStore   LogStoreConfig   `mapstructure:"logstore"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GitConfig controls change detection.
type GitConfig struct {
	Dir         string        `mapstructure:"dir"`
	WorkTree    string        `mapstructure:"work_tree"`
	BaseRef     string        `mapstructure:"base_ref"`
	FetchMode   string        `mapstructure:"fetch_mode"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// ModulesConfig controls module selection.
type ModulesConfig struct {
	Include   []string `mapstructure:"include"`
	Exclude   []string `mapstructure:"exclude"`
	Ignore    []string `mapstructure:"ignore"`
	Manifests []string `mapstructure:"manifests"`
}

// ServerConfig describes how the application server is launched.
type ServerConfig struct {
	Binary     string   `mapstructure:"binary"`
	Database   string   `mapstructure:"database"`
	LogDBLevel string   `mapstructure:"log_db_level"`
	ExtraArgs  []string `mapstructure:"extra_args"`
	Tags       []string `mapstructure:"tags"`
}

// LogStoreConfig selects where session log records are read from.
type LogStoreConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
	Path    string `mapstructure:"path"`
}

// EvaluationConfig holds the pass/fail policy.
type EvaluationConfig struct {
	FailLevel string   `mapstructure:"fail_level"`
	Allow     []string `mapstructure:"allow"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus push settings.
type TelemetryConfig struct {
	Environment    string            `mapstructure:"environment"`
	OTLPEndpoint   string            `mapstructure:"otlp_endpoint"`
	OTLPHeaders    map[string]string `mapstructure:"otlp_headers"`
	PushgatewayURL string            `mapstructure:"pushgateway_url"`
	PushgatewayJob string            `mapstructure:"pushgateway_job"`
	OTLPInsecure   bool              `mapstructure:"otlp_insecure"`
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	switch gitlib.FetchMode(c.Git.FetchMode) {
	case gitlib.FetchScoped, gitlib.FetchIsolated, gitlib.FetchNone:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFetchMode, c.Git.FetchMode)
	}

	if c.Git.LockTimeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLockTimeout, c.Git.LockTimeout)
	}

	switch c.LogStore.Backend {
	case logstore.BackendPostgres:
	case logstore.BackendFile:
		if c.LogStore.Path == "" {
			return ErrMissingStorePath
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.LogStore.Backend)
	}

	_, policyErr := c.EvaluationPolicy()
	if policyErr != nil {
		return policyErr
	}

	var lvl slog.Level

	levelErr := lvl.UnmarshalText([]byte(c.Logging.Level))
	if levelErr != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	if c.Logging.Format != LogFormatText && c.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// EvaluationPolicy builds the outcome policy from the evaluation section.
func (c *Config) EvaluationPolicy() (outcome.Policy, error) {
	policy, err := outcome.NewPolicy(c.Evaluation.FailLevel, c.Evaluation.Allow...)
	if err != nil {
		return outcome.Policy{}, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	return policy, nil
}

// LogLevel returns the configured slog level, or info when unset.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level

	err := lvl.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return slog.LevelInfo
	}

	return lvl
}

// StoreOptions converts the logstore section to store options.
func (c *Config) StoreOptions() logstore.Options {
	return logstore.Options{
		Backend: c.LogStore.Backend,
		DSN:     c.LogStore.DSN,
		Path:    c.LogStore.Path,
	}
}
