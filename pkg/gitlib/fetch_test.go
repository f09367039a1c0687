package gitlib_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/modtest/pkg/gitlib"
)

const originFetchKey = "remote.origin.fetch"

func newFetchRepo(t *testing.T, runner *gitlib.FakeRunner, opts ...gitlib.Option) *gitlib.Repository {
	t.Helper()

	runner.Respond("origin\nupstream", "remote")

	opts = append([]gitlib.Option{gitlib.WithRunner(runner)}, opts...)

	return gitlib.NewRepository(t.TempDir(), opts...)
}

func TestSplitRemoteRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref    string
		remote string
		branch string
		ok     bool
	}{
		{ref: "origin/master", remote: "origin", branch: "master", ok: true},
		{ref: "origin/feature/nested", remote: "origin", branch: "feature/nested", ok: true},
		{ref: "master", ok: false},
		{ref: "/master", ok: false},
		{ref: "origin/", ok: false},
		{ref: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()

			remote, branch, ok := gitlib.SplitRemoteRef(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.remote, remote)
			assert.Equal(t, tt.branch, branch)
		})
	}
}

func TestFetchRemoteBranch_LocalRefSkipsFetch(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "0123abcd"))

	assert.Empty(t, runner.Calls())
}

func TestFetchRemoteBranch_UnknownRemoteIsLocalBranch(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "feature/login"))

	assert.False(t, runner.Called("fetch"))
	assert.False(t, runner.Called("config"))
}

func TestFetchRemoteBranch_ScopedRestoresOriginalConfig(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.SetConfig(originFetchKey, "+refs/heads/main:refs/remotes/origin/main")
	runner.Respond("", "fetch", "origin", "master")

	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/master"))

	assert.True(t, runner.Called("config", "--add", originFetchKey, "+refs/heads/master:refs/remotes/origin/master"))
	assert.True(t, runner.Called("fetch", "origin", "master"))
	assert.Equal(t, []string{"+refs/heads/main:refs/remotes/origin/main"}, runner.Config(originFetchKey))
}

func TestFetchRemoteBranch_ScopedKeepsRefspecOrder(t *testing.T) {
	t.Parallel()

	original := []string{
		"+refs/heads/main:refs/remotes/origin/main",
		"+refs/heads/release:refs/remotes/origin/release",
	}

	runner := gitlib.NewFakeRunner()
	runner.SetConfig(originFetchKey, original...)
	runner.Respond("", "fetch")

	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/16.0"))

	assert.Equal(t, original, runner.Config(originFetchKey))
}

func TestFetchRemoteBranch_ScopedRestoresMissingKey(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.Respond("", "fetch")

	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "upstream/master"))

	assert.True(t, runner.Called("fetch", "upstream", "master"))
	assert.Nil(t, runner.Config("remote.upstream.fetch"))
}

func TestFetchRemoteBranch_ScopedLeavesGlobalRefspecsOutOfRepository(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.SetGlobalConfig(originFetchKey, "+refs/heads/master:refs/remotes/origin/master")
	runner.Respond("", "fetch")

	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/16.0"))

	assert.True(t, runner.Called("config", "--local", "--get-all", originFetchKey))
	assert.True(t, runner.Called("fetch", "origin", "16.0"))
	assert.Nil(t, runner.Config(originFetchKey))
}

func TestFetchRemoteBranch_LockFailureSkipsFetch(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.Respond("origin", "remote")
	runner.SetConfig(originFetchKey, "+refs/heads/main:refs/remotes/origin/main")

	missing := filepath.Join(t.TempDir(), "missing", ".git")
	repo := gitlib.NewRepository(missing, gitlib.WithRunner(runner))

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/master"))

	assert.False(t, runner.Called("fetch"))
	assert.False(t, runner.Called("config", "--add"))
	assert.Equal(t, []string{"+refs/heads/main:refs/remotes/origin/main"}, runner.Config(originFetchKey))
}

func TestFetchRemoteBranch_FetchFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.SetConfig(originFetchKey, "+refs/heads/*:refs/remotes/origin/*")
	runner.Fail(&gitlib.CommandError{ExitCode: 128, Stderr: "could not read from remote repository"}, "fetch")

	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/feature-1"))

	assert.Equal(t, []string{"+refs/heads/*:refs/remotes/origin/*"}, runner.Config(originFetchKey))
}

func TestFetchRemoteBranch_WidenFailureStillRestores(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.SetConfig(originFetchKey, "+refs/heads/main:refs/remotes/origin/main")
	runner.Fail(errors.New("config locked"), "config", "--add", originFetchKey, "+refs/heads/master:refs/remotes/origin/master")

	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/master"))

	assert.False(t, runner.Called("fetch"))
	assert.True(t, runner.Called("config", "--unset-all", originFetchKey))
	assert.Equal(t, []string{"+refs/heads/main:refs/remotes/origin/main"}, runner.Config(originFetchKey))
}

func TestFetchRemoteBranch_CaptureFailureSkipsMutation(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.Fail(&gitlib.CommandError{ExitCode: 3, Stderr: "invalid config file"}, "config", "--local", "--get-all")

	repo := newFetchRepo(t, runner)

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/master"))

	assert.False(t, runner.Called("config", "--add"))
	assert.False(t, runner.Called("config", "--unset-all"))
	assert.False(t, runner.Called("fetch"))
}

func TestFetchRemoteBranch_RestoreFailureIsSurfaced(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.SetConfig(originFetchKey, "+refs/heads/main:refs/remotes/origin/main")
	runner.Respond("", "fetch")
	runner.Fail(errors.New("permission denied"), "config", "--unset-all")

	repo := newFetchRepo(t, runner)

	err := repo.FetchRemoteBranch(context.Background(), "origin/master")
	require.Error(t, err)
	assert.ErrorIs(t, err, gitlib.ErrRestoreFetchConfig)
}

func TestFetchRemoteBranch_RestoreRunsAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	runner := gitlib.NewFakeRunner()
	runner.SetConfig(originFetchKey, "+refs/heads/main:refs/remotes/origin/main")

	failingFetch := gitlib.RunnerFunc(func(callCtx context.Context, gitDir string, args ...string) (string, error) {
		if args[0] == "fetch" {
			cancel()

			return "", context.Canceled
		}

		return runner.Run(callCtx, gitDir, args...)
	})

	runner.Respond("origin", "remote")

	repo := gitlib.NewRepository(t.TempDir(), gitlib.WithRunner(failingFetch))

	require.NoError(t, repo.FetchRemoteBranch(ctx, "origin/master"))
	assert.Equal(t, []string{"+refs/heads/main:refs/remotes/origin/main"}, runner.Config(originFetchKey))
}

func TestFetchRemoteBranch_IsolatedNeverTouchesConfig(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	runner.SetConfig(originFetchKey, "+refs/heads/main:refs/remotes/origin/main")
	runner.Respond("", "fetch")

	repo := newFetchRepo(t, runner, gitlib.WithFetchMode(gitlib.FetchIsolated))

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/master"))

	assert.True(t, runner.Called("fetch", "origin", "+refs/heads/master:refs/remotes/origin/master"))
	assert.False(t, runner.Called("config"))
}

func TestFetchRemoteBranch_NoneModeSkips(t *testing.T) {
	t.Parallel()

	runner := gitlib.NewFakeRunner()
	repo := newFetchRepo(t, runner, gitlib.WithFetchMode(gitlib.FetchNone))

	require.NoError(t, repo.FetchRemoteBranch(context.Background(), "origin/master"))

	assert.Empty(t, runner.Calls())
}
