package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/modtest/cmd/modtest/commands"
	"github.com/Sumatoshi-tech/modtest/pkg/config"
	"github.com/Sumatoshi-tech/modtest/pkg/execution"
	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
)

func TestRunCommand_NothingToTest(t *testing.T) {
	t.Parallel()

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, fileStoreConfig(t, passingRecords)),
		includeOnlyResolver, logstore.Open, exe.factory)

	out, err := execute(t, cmd)
	require.NoError(t, err)

	assert.Contains(t, out, "No module to test. Exiting...")
	assert.Empty(t, exe.Plans())
}

func TestRunCommand_Passed(t *testing.T) {
	t.Parallel()

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, fileStoreConfig(t, passingRecords)),
		includeOnlyResolver, logstore.Open, exe.factory)

	out, err := execute(t, cmd, "--include", "sale,crm", "--tags", "post_install")
	require.NoError(t, err)

	assert.Contains(t, out, "PASSED")
	assert.Contains(t, out, "2 records evaluated")

	plans := exe.Plans()
	require.Len(t, plans, 1)
	assert.Equal(t, "ci", plans[0].Database)
	assert.Equal(t, []string{"crm", "sale"}, plans[0].Modules)
	assert.Equal(t, []string{"post_install"}, plans[0].Tags)
}

func TestRunCommand_Failed(t *testing.T) {
	t.Parallel()

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, fileStoreConfig(t, failingRecords)),
		includeOnlyResolver, logstore.Open, exe.factory)

	out, err := execute(t, cmd, "-i", "sale")
	require.ErrorIs(t, err, commands.ErrTestsFailed)

	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "1 of 2 records failed at level ERROR")
	assert.Contains(t, out, "FAIL: test_confirm_order")
	assert.NotContains(t, out, "Traceback")
}

func TestRunCommand_FlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	records := `[{"id": 1, "level": "INFO", "message": "sale: 3 tests 0.1s", "dbname": "ci_override"}]`
	configYAML := fileStoreConfig(t, records) + "modules:\n  include: [sale, stock]\n"

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, configYAML),
		includeOnlyResolver, logstore.Open, exe.factory)

	_, err := execute(t, cmd, "--exclude", "stock", "--database", "ci_override")
	require.NoError(t, err)

	plans := exe.Plans()
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"sale"}, plans[0].Modules)
	assert.Equal(t, "ci_override", plans[0].Database)
}

func TestRunCommand_ConfigUsedWithoutFlags(t *testing.T) {
	t.Parallel()

	configYAML := fileStoreConfig(t, passingRecords) + "modules:\n  include: [stock]\n"

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, configYAML),
		includeOnlyResolver, logstore.Open, exe.factory)

	_, err := execute(t, cmd)
	require.NoError(t, err)

	plans := exe.Plans()
	require.Len(t, plans, 1)
	assert.Equal(t, []string{"stock"}, plans[0].Modules)
}

func TestRunCommand_ExecutorError(t *testing.T) {
	t.Parallel()

	exe := &recordingExecutor{err: execution.ErrServerStart}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, fileStoreConfig(t, passingRecords)),
		includeOnlyResolver, logstore.Open, exe.factory)

	out, err := execute(t, cmd, "-i", "sale")
	require.ErrorIs(t, err, execution.ErrServerStart)
	assert.NotContains(t, out, "PASSED")
}

func TestRunCommand_ResolverError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	failing := func(context.Context, session.ResolverConfig) (session.Resolver, error) {
		return nil, errBoom
	}

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, fileStoreConfig(t, passingRecords)),
		failing, logstore.Open, exe.factory)

	_, err := execute(t, cmd, "-i", "sale")
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, exe.Plans())
}

func TestRunCommand_InvalidFetchMode(t *testing.T) {
	t.Parallel()

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, fileStoreConfig(t, passingRecords)),
		includeOnlyResolver, logstore.Open, exe.factory)

	_, err := execute(t, cmd, "--fetch-mode", "sideways")
	require.ErrorIs(t, err, config.ErrInvalidFetchMode)
}

func TestRunCommand_Flags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewRunCommand(&commands.GlobalOptions{})

	for _, name := range []string{"git-dir", "work-tree", "base-ref", "fetch-mode", "include", "exclude", "tags", "database", "odoo-bin"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	assert.Equal(t, "i", cmd.Flags().Lookup("include").Shorthand)
	assert.Equal(t, "e", cmd.Flags().Lookup("exclude").Shorthand)
	assert.Equal(t, "t", cmd.Flags().Lookup("tags").Shorthand)
}

func TestRunCommand_WritesReport(t *testing.T) {
	t.Parallel()

	reportPath := filepath.Join(t.TempDir(), "report.json")

	exe := &recordingExecutor{}
	cmd := commands.NewRunCommandWithDeps(newGlobal(t, fileStoreConfig(t, failingRecords)),
		includeOnlyResolver, logstore.Open, exe.factory)

	_, err := execute(t, cmd, "-i", "sale", "--report", reportPath)
	require.ErrorIs(t, err, commands.ErrTestsFailed)

	data, readErr := os.ReadFile(reportPath)
	require.NoError(t, readErr)

	var doc struct {
		State    string   `json:"state"`
		Modules  []string `json:"modules"`
		Database string   `json:"database"`
		Passed   bool     `json:"passed"`
	}

	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "failed", doc.State)
	assert.Equal(t, []string{"sale"}, doc.Modules)
	assert.Equal(t, "ci", doc.Database)
	assert.False(t, doc.Passed)
}
