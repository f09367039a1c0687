package gitlib

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// FetchMode selects how a remote base branch is made available before diffing.
type FetchMode string

const (
	// FetchScoped temporarily widens remote.<name>.fetch under the repository
	// lock, fetches, and restores the original refspecs.
	FetchScoped FetchMode = "scoped"
	// FetchIsolated passes an explicit refspec to git fetch and never touches
	// the repository configuration.
	FetchIsolated FetchMode = "isolated"
	// FetchNone skips fetching entirely.
	FetchNone FetchMode = "none"
)

// gitDirName is the conventional metadata directory inside a work tree.
const gitDirName = ".git"

// Repository is an immutable handle on a repository's metadata directory.
type Repository struct {
	runner      Runner
	logger      *slog.Logger
	gitDir      string
	workTree    string
	fetchMode   FetchMode
	lockTimeout time.Duration
}

// Option configures a [Repository].
type Option func(*Repository)

// WithRunner replaces the subprocess runner.
func WithRunner(runner Runner) Option {
	return func(r *Repository) { r.runner = runner }
}

// WithLogger sets the logger for degraded operations.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// WithWorkTree sets the work tree that changed paths are relative to.
func WithWorkTree(workTree string) Option {
	return func(r *Repository) { r.workTree = workTree }
}

// WithFetchMode selects the remote fetch strategy.
func WithFetchMode(mode FetchMode) Option {
	return func(r *Repository) { r.fetchMode = mode }
}

// WithLockTimeout bounds how long a scoped fetch waits for the repository lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(r *Repository) { r.lockTimeout = timeout }
}

// NewRepository creates a handle for the repository whose metadata lives in gitDir.
func NewRepository(gitDir string, opts ...Option) *Repository {
	repo := &Repository{
		runner:    ExecRunner{},
		logger:    slog.Default(),
		gitDir:    gitDir,
		fetchMode: FetchScoped,
	}

	for _, opt := range opts {
		opt(repo)
	}

	return repo
}

// GitDir returns the metadata directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// WorkTree returns the directory changed paths are relative to. An explicit
// work tree wins; a "<dir>/.git" metadata directory maps to "<dir>"; otherwise
// git is asked for the top level, falling back to the process working directory.
func (r *Repository) WorkTree(ctx context.Context) string {
	if r.workTree != "" {
		return r.workTree
	}

	if filepath.Base(filepath.Clean(r.gitDir)) == gitDirName {
		return filepath.Dir(filepath.Clean(r.gitDir))
	}

	top, err := r.runner.Run(ctx, r.gitDir, "rev-parse", "--show-toplevel")
	if err == nil && top != "" {
		return top
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	return cwd
}

// Remotes lists configured remote names.
func (r *Repository) Remotes(ctx context.Context) ([]string, error) {
	out, err := r.runner.Run(ctx, r.gitDir, "remote")
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}

	return splitLines(out), nil
}

// ChangedPaths returns the paths that differ between the index and baseRef,
// as reported by "git diff-index -z --name-only --cached". Paths are taken
// verbatim from the NUL-separated output, so names git would otherwise quote
// (non-ASCII, quotes, backslashes) are kept intact. A remote/branch ref is
// fetched first. Fetch and diff failures degrade to an empty result; the only
// error returned is [ErrRestoreFetchConfig], when the call may have left the
// repository configuration modified.
func (r *Repository) ChangedPaths(ctx context.Context, baseRef string) ([]string, error) {
	fetchErr := r.FetchRemoteBranch(ctx, baseRef)

	out, diffErr := r.runner.Run(ctx, r.gitDir, "diff-index", "-z", "--name-only", "--cached", baseRef)
	if diffErr != nil {
		r.logger.WarnContext(ctx, "diff against base ref failed, assuming no changes",
			"ref", baseRef, "git_dir", r.gitDir, "error", diffErr)

		return nil, fetchErr
	}

	return splitNUL(out), fetchErr
}

// SplitRemoteRef splits "remote/branch" at the first slash. ok is false when
// either side is empty or there is no slash.
func SplitRemoteRef(ref string) (remote, branch string, ok bool) {
	remote, branch, found := strings.Cut(ref, "/")
	if !found || remote == "" || branch == "" {
		return "", "", false
	}

	return remote, branch, true
}

// isRemote reports whether name is a configured remote. Any failure answers no.
func (r *Repository) isRemote(ctx context.Context, name string) bool {
	remotes, err := r.Remotes(ctx)
	if err != nil {
		r.logger.DebugContext(ctx, "cannot list remotes", "git_dir", r.gitDir, "error", err)

		return false
	}

	return slices.Contains(remotes, name)
}

func splitLines(out string) []string {
	if out == "" {
		return nil
	}

	lines := strings.Split(out, "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// splitNUL splits -z output. Entries are not trimmed; a path may begin or end
// with spaces.
func splitNUL(out string) []string {
	var result []string

	for _, entry := range strings.Split(out, "\x00") {
		if entry != "" {
			result = append(result, entry)
		}
	}

	return result
}
