// Package gitlib issues git queries against a repository's metadata directory.
//
// All git access goes through the narrow [Runner] interface so that the change
// detection logic built on top of it can be exercised with a scripted fake.
package gitlib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// defaultBinary is the git executable looked up in PATH.
const defaultBinary = "git"

// Runner executes a git command for the repository whose metadata lives in gitDir
// and returns its standard output.
type Runner interface {
	Run(ctx context.Context, gitDir string, args ...string) (string, error)
}

// RunnerFunc adapts a plain function to the [Runner] interface.
type RunnerFunc func(ctx context.Context, gitDir string, args ...string) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, gitDir string, args ...string) (string, error) {
	return f(ctx, gitDir, args...)
}

// CommandError describes a git invocation that exited unsuccessfully.
type CommandError struct {
	Args     []string
	Stderr   string
	ExitCode int
}

// Error implements error.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}

	return msg
}

// ExitCode returns the exit status carried by err, or -1 when err is not a
// [CommandError].
func ExitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}

	return -1
}

// ExecRunner runs the git binary as a subprocess with --git-dir set.
type ExecRunner struct {
	// Binary is the git executable. Empty means "git" from PATH.
	Binary string
}

// Run implements [Runner]. Trailing newlines are trimmed from the output.
func (r ExecRunner) Run(ctx context.Context, gitDir string, args ...string) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = defaultBinary
	}

	fullArgs := make([]string, 0, len(args)+1)
	if gitDir != "" {
		fullArgs = append(fullArgs, "--git-dir="+gitDir)
	}

	fullArgs = append(fullArgs, args...)

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return "", &CommandError{
				Args:     args,
				Stderr:   strings.TrimSpace(stderr.String()),
				ExitCode: exitErr.ExitCode(),
			}
		}

		return "", fmt.Errorf("run git %s: %w", strings.Join(args, " "), runErr)
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}
