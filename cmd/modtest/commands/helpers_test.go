package commands_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/modtest/cmd/modtest/commands"
	"github.com/Sumatoshi-tech/modtest/pkg/config"
	"github.com/Sumatoshi-tech/modtest/pkg/execution"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
)

const passingRecords = `[
	{"id": 1, "level": "INFO", "message": "loading 1 modules", "dbname": "ci"},
	{"id": 2, "level": "INFO", "message": "sale: 12 tests 0.31s", "dbname": "ci"}
]`

const failingRecords = `[
	{"id": 1, "level": "INFO", "message": "loading 1 modules", "dbname": "ci"},
	{"id": 2, "time": "2024-03-01T10:00:00Z", "level": "ERROR", "name": "odoo.addons.sale.tests", "message": "FAIL: test_confirm_order\nTraceback (most recent call last):", "dbname": "ci"}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// newGlobal writes configYAML to a temporary config file.
func newGlobal(t *testing.T, configYAML string) *commands.GlobalOptions {
	t.Helper()

	return &commands.GlobalOptions{
		ConfigPath: writeFile(t, t.TempDir(), "modtest.yaml", configYAML),
		NoColor:    true,
	}
}

// fileStoreConfig returns a config selecting the file backend over records.
func fileStoreConfig(t *testing.T, records string) string {
	t.Helper()

	path := writeFile(t, t.TempDir(), "records.json", records)

	return "logstore:\n  backend: file\n  path: " + path + "\nserver:\n  database: ci\n"
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	// Mirror the root command, which silences cobra's usage/error output.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetContext(context.Background())

	err := cmd.Execute()

	return stdout.String(), err
}

func includeOnlyResolver(ctx context.Context, cfg session.ResolverConfig) (session.Resolver, error) {
	cfg.GitDir = ""
	cfg.Logger = slog.New(slog.DiscardHandler)

	return session.NewResolver(ctx, cfg)
}

// recordingExecutor captures the plans it is asked to run.
type recordingExecutor struct {
	err   error
	plans []execution.Plan
	mu    sync.Mutex
}

func (r *recordingExecutor) factory(_ *config.Config, _ *slog.Logger, _, _ io.Writer) execution.Executor {
	return execution.ExecutorFunc(func(_ context.Context, plan execution.Plan) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.plans = append(r.plans, plan)

		return r.err
	})
}

func (r *recordingExecutor) Plans() []execution.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]execution.Plan(nil), r.plans...)
}
