package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modtest/pkg/config"
	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/mcp"
	"github.com/Sumatoshi-tech/modtest/pkg/modules"
	"github.com/Sumatoshi-tech/modtest/pkg/observability"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(global *GlobalOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes modtest capabilities as tools that AI agents
can discover and invoke:
  - modtest_changed_modules: Modules changed in a repository against a base ref
  - modtest_evaluate_records: Pass/fail verdict for a list of log records
  - modtest_session_verdict: Pass/fail verdict for a session in the log store`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := global.LoadConfig()
			if err != nil {
				return err
			}

			obsCfg := global.ObservabilityConfig(cfg, observability.ModeMCP)
			obsCfg.LogJSON = true
			obsCfg.LogWriter = cobraCmd.ErrOrStderr()

			if debug {
				obsCfg.LogLevel = slog.LevelDebug
				obsCfg.DebugTrace = true
			}

			providers, err := observability.Init(obsCfg)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return redErr
			}

			deps, depsErr := mcpDeps(cfg, providers.Logger)
			if depsErr != nil {
				return depsErr
			}

			deps.Metrics = red
			deps.Tracer = providers.Tracer

			srv := mcp.NewServer(deps)

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}

// mcpDeps wires the tool backends from the project configuration. Tool
// arguments replace the repository paths per call.
func mcpDeps(cfg *config.Config, logger *slog.Logger) (mcp.ServerDeps, error) {
	policy, err := cfg.EvaluationPolicy()
	if err != nil {
		return mcp.ServerDeps{}, err
	}

	base := resolverConfig(cfg, logger)

	newResolver := func(ctx context.Context, gitDir, workTree string) (*modules.Resolver, error) {
		rc := base
		rc.GitDir = gitDir
		rc.WorkTree = workTree

		return session.NewResolver(ctx, rc)
	}

	return mcp.ServerDeps{
		NewResolver: newResolver,
		Store:       logstore.NewSessionStore(cfg.StoreOptions()),
		Policy:      &policy,
		Logger:      logger,
	}, nil
}
