package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/modtest/pkg/config"
	"github.com/Sumatoshi-tech/modtest/pkg/execution"
	"github.com/Sumatoshi-tech/modtest/pkg/gitlib"
	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/observability"
	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
	"github.com/Sumatoshi-tech/modtest/pkg/report"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
	"github.com/Sumatoshi-tech/modtest/pkg/version"
)

// ErrTestsFailed is returned when a session ends with a failing verdict.
var ErrTestsFailed = errors.New("tests failed")

type resolverFactory func(ctx context.Context, cfg session.ResolverConfig) (session.Resolver, error)

type storeFactory func(opts logstore.Options, database string) (logstore.Store, error)

type executorFactory func(cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) execution.Executor

// RunCommand holds the flags and collaborators of "modtest run".
type RunCommand struct {
	global *GlobalOptions

	newResolver resolverFactory
	openStore   storeFactory
	newExecutor executorFactory

	selection selectionFlags

	database   string
	binary     string
	reportPath string
	tags       []string
}

// selectionFlags are the change detection flags shared by run and changed.
type selectionFlags struct {
	gitDir    string
	workTree  string
	baseRef   string
	fetchMode string
	include   []string
	exclude   []string
}

func (sf *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sf.gitDir, "git-dir", "", "Repository metadata directory; enables change detection")
	cmd.Flags().StringVar(&sf.workTree, "work-tree", "", "Work tree changed paths are relative to")
	cmd.Flags().StringVar(&sf.baseRef, "base-ref", "", "Branch, remote/branch, or commit to compare against")
	cmd.Flags().StringVar(&sf.fetchMode, "fetch-mode", "", "Remote fetch strategy: scoped, isolated, none")
	cmd.Flags().StringSliceVarP(&sf.include, "include", "i", nil, "Force test run on those modules")
	cmd.Flags().StringSliceVarP(&sf.exclude, "exclude", "e", nil,
		"Force excluding those modules from tests, even if a change has been detected")
}

// apply overrides cfg with the flags the user set explicitly.
func (sf *selectionFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("git-dir") {
		cfg.Git.Dir = sf.gitDir
	}

	if flags.Changed("work-tree") {
		cfg.Git.WorkTree = sf.workTree
	}

	if flags.Changed("base-ref") {
		cfg.Git.BaseRef = sf.baseRef
	}

	if flags.Changed("fetch-mode") {
		cfg.Git.FetchMode = sf.fetchMode
	}

	if flags.Changed("include") {
		cfg.Modules.Include = sf.include
	}

	if flags.Changed("exclude") {
		cfg.Modules.Exclude = sf.exclude
	}

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	return nil
}

// NewRunCommand creates the run subcommand.
func NewRunCommand(global *GlobalOptions) *cobra.Command {
	return newRunCommandWithDeps(global, defaultResolver, logstore.Open, defaultExecutor)
}

func newRunCommandWithDeps(
	global *GlobalOptions,
	newResolver resolverFactory,
	openStore storeFactory,
	newExecutor executorFactory,
) *cobra.Command {
	rc := &RunCommand{
		global:      global,
		newResolver: newResolver,
		openStore:   openStore,
		newExecutor: newExecutor,
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Test the modules changed against a base ref",
		Long: `Detect the modules changed against a base ref, install and update them on a
database with tests enabled, and evaluate the log records the server wrote.

The selected modules are (changed ∪ include) − exclude. When nothing is
selected the command exits successfully without starting the server.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	rc.selection.register(cmd)
	cmd.Flags().StringSliceVarP(&rc.tags, "tags", "t", nil, "Filter on those test tags")
	cmd.Flags().StringVarP(&rc.database, "database", "d", "", "Database to test on and read log records from")
	cmd.Flags().StringVar(&rc.binary, "odoo-bin", "", "Server executable")
	cmd.Flags().StringVar(&rc.reportPath, "report", "", "Write a session report to this .json or .yaml file")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := rc.global.LoadConfig()
	if err != nil {
		return err
	}

	err = rc.applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	providers, stop, err := rc.global.startObservability(cfg, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer stop()

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	resolver, err := rc.newResolver(ctx, resolverConfig(cfg, providers.Logger))
	if err != nil {
		return err
	}

	store, err := rc.openStore(cfg.StoreOptions(), cfg.Server.Database)
	if err != nil {
		return err
	}

	policy, err := cfg.EvaluationPolicy()
	if err != nil {
		return err
	}

	sess := session.New(session.Deps{
		Resolver:  resolver,
		Executor:  rc.newExecutor(cfg, providers.Logger, cmd.OutOrStdout(), cmd.ErrOrStderr()),
		Store:     store,
		Evaluator: outcome.NewEvaluator(policy),
		Tracer:    providers.Tracer,
		Metrics:   red,
		Logger:    providers.Logger,
	})

	req := session.Request{
		BaseRef:  cfg.Git.BaseRef,
		Database: cfg.Server.Database,
		Include:  cfg.Modules.Include,
		Exclude:  cfg.Modules.Exclude,
		Tags:     cfg.Server.Tags,
	}

	result, err := sess.Run(ctx, req)

	if rc.reportPath != "" && result.State != session.Idle {
		saveErr := report.Save(rc.reportPath, report.New(version.Version, req, result))
		if saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}

	if err != nil {
		return err
	}

	rep := newReporter(cmd.OutOrStdout(), rc.global.NoColor)

	if result.State == session.Skipped {
		rep.nothingToTest()

		return nil
	}

	rep.verdict(result.Verdict)

	if !rc.global.Quiet {
		rep.sessionSummary(result)
	}

	if result.State == session.Failed {
		return ErrTestsFailed
	}

	return nil
}

func (rc *RunCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("database") {
		cfg.Server.Database = rc.database
	}

	if flags.Changed("odoo-bin") {
		cfg.Server.Binary = rc.binary
	}

	if flags.Changed("tags") {
		cfg.Server.Tags = rc.tags
	}

	return rc.selection.apply(cmd, cfg)
}

func resolverConfig(cfg *config.Config, logger *slog.Logger) session.ResolverConfig {
	return session.ResolverConfig{
		Logger:      logger,
		GitDir:      cfg.Git.Dir,
		WorkTree:    cfg.Git.WorkTree,
		FetchMode:   gitlib.FetchMode(cfg.Git.FetchMode),
		Manifests:   cfg.Modules.Manifests,
		Ignore:      cfg.Modules.Ignore,
		LockTimeout: cfg.Git.LockTimeout,
	}
}

func defaultResolver(ctx context.Context, cfg session.ResolverConfig) (session.Resolver, error) {
	resolver, err := session.NewResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return resolver, nil
}

func defaultExecutor(cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) execution.Executor {
	return execution.NewOdooExecutor(
		execution.WithBinary(cfg.Server.Binary),
		execution.WithLogDBLevel(cfg.Server.LogDBLevel),
		execution.WithExtraArgs(cfg.Server.ExtraArgs...),
		execution.WithOutput(stdout, stderr),
		execution.WithLogger(logger),
	)
}
