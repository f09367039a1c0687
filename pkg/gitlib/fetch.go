package gitlib

import (
	"context"
	"errors"
	"fmt"
)

// Exit statuses of "git config" this package relies on.
const (
	configExitKeyMissing = 1
	configExitNoSection  = 5
)

// ErrRestoreFetchConfig is returned when the original remote fetch refspecs
// could not be written back after a scoped fetch. The repository configuration
// may be left modified.
var ErrRestoreFetchConfig = errors.New("restore remote fetch configuration")

// FetchRemoteBranch makes a "remote/branch" ref available locally so that a
// narrow or shallow clone can be diffed against it. Refs without a slash, or
// whose first segment is not a configured remote, are left alone. Fetch
// and lock failures are logged and swallowed; only restore failures are
// returned.
func (r *Repository) FetchRemoteBranch(ctx context.Context, ref string) error {
	if r.fetchMode == FetchNone {
		return nil
	}

	remote, branch, ok := SplitRemoteRef(ref)
	if !ok || !r.isRemote(ctx, remote) {
		return nil
	}

	refspec := fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch)

	if r.fetchMode == FetchIsolated {
		_, fetchErr := r.runner.Run(ctx, r.gitDir, "fetch", remote, refspec)
		if fetchErr != nil {
			r.logger.WarnContext(ctx, "fetch of base branch failed",
				"ref", ref, "git_dir", r.gitDir, "error", fetchErr)
		}

		return nil
	}

	return r.scopedFetch(ctx, remote, branch, refspec)
}

func (r *Repository) scopedFetch(ctx context.Context, remote, branch, refspec string) (err error) {
	lock, lockErr := AcquireLock(ctx, r.gitDir, r.lockTimeout)
	if lockErr != nil {
		r.logger.WarnContext(ctx, "cannot lock repository, skipping fetch",
			"remote", remote, "git_dir", r.gitDir, "error", lockErr)

		return nil
	}

	defer func() {
		err = errors.Join(err, lock.Release())
	}()

	override, captureErr := captureFetchConfig(ctx, r.runner, r.gitDir, remote)
	if captureErr != nil {
		r.logger.WarnContext(ctx, "cannot read remote fetch configuration, skipping fetch",
			"remote", remote, "git_dir", r.gitDir, "error", captureErr)

		return nil
	}

	defer func() {
		restoreErr := override.restore(context.WithoutCancel(ctx))
		if restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("%w: %w", ErrRestoreFetchConfig, restoreErr))
		}
	}()

	widenErr := override.widen(ctx, refspec)
	if widenErr != nil {
		r.logger.WarnContext(ctx, "cannot widen remote fetch configuration, skipping fetch",
			"remote", remote, "git_dir", r.gitDir, "error", widenErr)

		return nil
	}

	_, fetchErr := r.runner.Run(ctx, r.gitDir, "fetch", remote, branch)
	if fetchErr != nil {
		r.logger.WarnContext(ctx, "fetch of base branch failed",
			"remote", remote, "branch", branch, "git_dir", r.gitDir, "error", fetchErr)
	}

	return nil
}

// fetchConfigOverride holds the repository-local refspecs of
// remote.<name>.fetch as they were before a temporary widening. Values from
// global or system config are not captured.
type fetchConfigOverride struct {
	runner   Runner
	gitDir   string
	key      string
	original []string
}

func captureFetchConfig(ctx context.Context, runner Runner, gitDir, remote string) (*fetchConfigOverride, error) {
	key := "remote." + remote + ".fetch"

	out, err := runner.Run(ctx, gitDir, "config", "--local", "--get-all", key)
	if err != nil && ExitCode(err) != configExitKeyMissing {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	return &fetchConfigOverride{
		runner:   runner,
		gitDir:   gitDir,
		key:      key,
		original: splitLines(out),
	}, nil
}

func (o *fetchConfigOverride) widen(ctx context.Context, refspec string) error {
	_, err := o.runner.Run(ctx, o.gitDir, "config", "--add", o.key, refspec)
	if err != nil {
		return fmt.Errorf("add %s: %w", o.key, err)
	}

	return nil
}

// restore rewrites the key to exactly the captured values, in order.
func (o *fetchConfigOverride) restore(ctx context.Context) error {
	_, unsetErr := o.runner.Run(ctx, o.gitDir, "config", "--unset-all", o.key)
	if unsetErr != nil && ExitCode(unsetErr) != configExitNoSection {
		return fmt.Errorf("unset %s: %w", o.key, unsetErr)
	}

	for _, value := range o.original {
		_, addErr := o.runner.Run(ctx, o.gitDir, "config", "--add", o.key, value)
		if addErr != nil {
			return fmt.Errorf("add %s %q: %w", o.key, value, addErr)
		}
	}

	return nil
}
