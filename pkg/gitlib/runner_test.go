package gitlib_test

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/modtest/pkg/gitlib"
)

func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func TestExecRunner_ReportsExitCode(t *testing.T) {
	t.Parallel()
	requireGit(t)

	_, err := gitlib.ExecRunner{}.Run(context.Background(), t.TempDir(), "config", "--get-all", "remote.nowhere.fetch")
	require.Error(t, err)

	var cmdErr *gitlib.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.NotZero(t, cmdErr.ExitCode)
	assert.Equal(t, cmdErr.ExitCode, gitlib.ExitCode(err))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := gitlib.ExecRunner{Binary: "/nonexistent/git"}.Run(context.Background(), "", "status")
	require.Error(t, err)
	assert.Equal(t, -1, gitlib.ExitCode(err))
}

func TestExitCode_PlainError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, gitlib.ExitCode(errors.New("boom")))
	assert.Equal(t, 5, gitlib.ExitCode(&gitlib.CommandError{ExitCode: 5}))
}

func TestCommandError_Message(t *testing.T) {
	t.Parallel()

	err := &gitlib.CommandError{Args: []string{"fetch", "origin"}, ExitCode: 128, Stderr: "fatal: unreachable"}
	assert.Equal(t, "git fetch origin: exit status 128: fatal: unreachable", err.Error())
}
