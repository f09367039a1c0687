// Package commands implements the modtest subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modtest/pkg/config"
	"github.com/Sumatoshi-tech/modtest/pkg/observability"
	"github.com/Sumatoshi-tech/modtest/pkg/version"
)

// Standard OpenTelemetry exporter environment variables.
const (
	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
)

// GlobalOptions holds the persistent flags shared by every subcommand.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	LogJSON    bool
	NoColor    bool
}

// Register binds the options to the root command's persistent flags.
func (g *GlobalOptions) Register(root *cobra.Command) {
	flags := root.PersistentFlags()

	flags.StringVar(&g.ConfigPath, "config", "", "Config file (default: .modtest.yaml in CWD or $HOME)")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&g.Quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&g.LogJSON, "log-json", false, "Emit logs as JSON")
	flags.BoolVar(&g.NoColor, "no-color", false, "Disable colored output")
}

// LoadConfig reads and validates the project configuration.
func (g *GlobalOptions) LoadConfig() (*config.Config, error) {
	return config.LoadConfig(g.ConfigPath)
}

// ObservabilityConfig derives the telemetry settings of one command run.
// OTEL_EXPORTER_OTLP_* variables fill in what the config file leaves unset.
func (g *GlobalOptions) ObservabilityConfig(cfg *config.Config, mode observability.AppMode) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = cfg.Telemetry.OTLPHeaders
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.PushgatewayURL = cfg.Telemetry.PushgatewayURL
	obsCfg.LogLevel = cfg.LogLevel()
	obsCfg.LogJSON = g.LogJSON || cfg.Logging.Format == config.LogFormatJSON

	if cfg.Telemetry.PushgatewayJob != "" {
		obsCfg.PushgatewayJob = cfg.Telemetry.PushgatewayJob
	}

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv(envOTLPEndpoint)
	}

	if len(obsCfg.OTLPHeaders) == 0 {
		obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))
	}

	if !obsCfg.OTLPInsecure {
		obsCfg.OTLPInsecure = strings.EqualFold(os.Getenv(envOTLPInsecure), "true")
	}

	switch {
	case g.Verbose:
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	case g.Quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	return obsCfg
}

// startObservability initializes telemetry. The returned stop function
// flushes and logs shutdown errors.
func (g *GlobalOptions) startObservability(
	cfg *config.Config, mode observability.AppMode, logWriter io.Writer,
) (observability.Providers, func(), error) {
	obsCfg := g.ObservabilityConfig(cfg, mode)
	obsCfg.LogWriter = logWriter

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, nil, err
	}

	stop := func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}

	return providers, stop, nil
}
