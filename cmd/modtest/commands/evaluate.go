package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/observability"
	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
)

// verdictReport is the JSON shape of "modtest evaluate --format json".
type verdictReport struct {
	Database string           `json:"database,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Failures []outcome.Record `json:"failures"`
	Records  int              `json:"records"`
	Passed   bool             `json:"passed"`
}

// EvaluateCommand holds the flags of "modtest evaluate".
type EvaluateCommand struct {
	global    *GlobalOptions
	openStore storeFactory

	database  string
	backend   string
	dsn       string
	path      string
	failLevel string
	allow     []string
	format    string
}

// NewEvaluateCommand creates the evaluate subcommand.
func NewEvaluateCommand(global *GlobalOptions) *cobra.Command {
	return newEvaluateCommandWithDeps(global, logstore.Open)
}

func newEvaluateCommandWithDeps(global *GlobalOptions, openStore storeFactory) *cobra.Command {
	ec := &EvaluateCommand{global: global, openStore: openStore}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the log records of a finished session",
		Long: `Read the log records a test session wrote and decide whether it passed,
without running any tests. Exits non-zero when the session failed.`,
		Args: cobra.NoArgs,
		RunE: ec.run,
	}

	cmd.Flags().StringVarP(&ec.database, "database", "d", "", "Database the session logged to")
	cmd.Flags().StringVar(&ec.backend, "backend", "", "Log store backend: postgres, file")
	cmd.Flags().StringVar(&ec.dsn, "dsn", "", "Postgres connection string (default: dbname=<database>)")
	cmd.Flags().StringVar(&ec.path, "file", "", "Record file for the file backend (JSON or YAML)")
	cmd.Flags().StringVar(&ec.failLevel, "fail-level", "", "Lowest failing severity (default: ERROR)")
	cmd.Flags().StringArrayVar(&ec.allow, "allow", nil, "Regular expressions of messages that never fail")
	cmd.Flags().StringVar(&ec.format, "format", FormatText, "Output format: text, json")

	return cmd
}

func (ec *EvaluateCommand) run(cmd *cobra.Command, _ []string) error {
	if ec.format != FormatText && ec.format != FormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, ec.format)
	}

	cfg, err := ec.global.LoadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed("database") {
		cfg.Server.Database = ec.database
	}

	if flags.Changed("backend") {
		cfg.LogStore.Backend = ec.backend
	}

	if flags.Changed("dsn") {
		cfg.LogStore.DSN = ec.dsn
	}

	if flags.Changed("file") {
		cfg.LogStore.Path = ec.path
		if !flags.Changed("backend") {
			cfg.LogStore.Backend = logstore.BackendFile
		}
	}

	if flags.Changed("fail-level") {
		cfg.Evaluation.FailLevel = ec.failLevel
	}

	if flags.Changed("allow") {
		cfg.Evaluation.Allow = ec.allow
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	policy, err := cfg.EvaluationPolicy()
	if err != nil {
		return err
	}

	providers, stop, err := ec.global.startObservability(cfg, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer stop()

	store, err := ec.openStore(cfg.StoreOptions(), cfg.Server.Database)
	if err != nil {
		return err
	}

	ctx, span := providers.Tracer.Start(cmd.Context(), "modtest.evaluate")
	defer span.End()

	records, err := store.Records(ctx, cfg.Server.Database)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	verdict := outcome.NewEvaluator(policy).Assess(records)

	span.SetAttributes(
		attribute.String("logstore.backend", cfg.LogStore.Backend),
		attribute.Int("evaluation.records", verdict.Records),
		attribute.Int("evaluation.failures", len(verdict.Failures)),
		attribute.Bool("evaluation.passed", verdict.Passed),
	)

	providers.Logger.DebugContext(ctx, "session evaluated",
		"database", cfg.Server.Database, "records", verdict.Records, "passed", verdict.Passed)

	if ec.format == FormatJSON {
		err = writeVerdictJSON(cmd, cfg.Server.Database, verdict)
	} else {
		newReporter(cmd.OutOrStdout(), ec.global.NoColor).verdict(verdict)
	}

	if err != nil {
		return err
	}

	if !verdict.Passed {
		return ErrTestsFailed
	}

	return nil
}

func writeVerdictJSON(cmd *cobra.Command, database string, verdict outcome.Verdict) error {
	failures := verdict.Failures
	if failures == nil {
		failures = []outcome.Record{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(verdictReport{
		Database: database,
		Reason:   verdict.Reason,
		Failures: failures,
		Records:  verdict.Records,
		Passed:   verdict.Passed,
	})
}
