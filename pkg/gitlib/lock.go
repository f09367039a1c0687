package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// LockFileName is created inside the git directory to serialize fetch
// configuration changes between concurrent modtest invocations.
const LockFileName = "modtest.lock"

const (
	lockPollInterval = 50 * time.Millisecond
	lockFileMode     = 0o644
)

// ErrLockTimeout is returned when the repository lock could not be taken in time.
var ErrLockTimeout = errors.New("timed out waiting for repository lock")

// Lock is an exclusive advisory lock on a repository's git directory.
type Lock struct {
	file *os.File
}

// AcquireLock takes an exclusive flock on gitDir/modtest.lock, polling until
// the lock is free, the timeout elapses, or ctx is canceled. A zero timeout
// waits for ctx only.
func AcquireLock(ctx context.Context, gitDir string, timeout time.Duration) (*Lock, error) {
	path := filepath.Join(gitDir, LockFileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFileMode)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		flockErr := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if flockErr == nil {
			return &Lock{file: file}, nil
		}

		if !errors.Is(flockErr, unix.EWOULDBLOCK) && !errors.Is(flockErr, unix.EINTR) {
			file.Close()

			return nil, fmt.Errorf("flock %s: %w", path, flockErr)
		}

		select {
		case <-ctx.Done():
			file.Close()

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
			}

			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return fmt.Errorf("unlock: %w", unlockErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close lock file: %w", closeErr)
	}

	return nil
}
