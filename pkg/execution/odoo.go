package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
)

// Server defaults.
const (
	DefaultBinary     = "odoo"
	DefaultLogDBLevel = "warning"
)

// ErrServerStart indicates the server process could not be started.
var ErrServerStart = errors.New("start test server")

// OdooExecutor runs the application server binary with tests enabled and
// database logging turned on, then waits for it to stop.
type OdooExecutor struct {
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
	binary     string
	logDBLevel string
	extraArgs  []string
}

// OdooOption configures an [OdooExecutor].
type OdooOption func(*OdooExecutor)

// WithBinary sets the server executable.
func WithBinary(binary string) OdooOption {
	return func(e *OdooExecutor) { e.binary = binary }
}

// WithExtraArgs appends arguments after the generated ones.
func WithExtraArgs(args ...string) OdooOption {
	return func(e *OdooExecutor) { e.extraArgs = append(e.extraArgs, args...) }
}

// WithLogDBLevel sets the minimum level the server writes to ir_logging.
func WithLogDBLevel(level string) OdooOption {
	return func(e *OdooExecutor) { e.logDBLevel = level }
}

// WithOutput redirects the server's standard streams.
func WithOutput(stdout, stderr io.Writer) OdooOption {
	return func(e *OdooExecutor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) OdooOption {
	return func(e *OdooExecutor) { e.logger = logger }
}

// NewOdooExecutor creates an executor with defaults applied.
func NewOdooExecutor(opts ...OdooOption) *OdooExecutor {
	exe := &OdooExecutor{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		logger:     slog.Default(),
		binary:     DefaultBinary,
		logDBLevel: DefaultLogDBLevel,
	}

	for _, opt := range opts {
		opt(exe)
	}

	return exe
}

// Args returns the server command line for plan, with modules and tags sorted.
func (e *OdooExecutor) Args(plan Plan) []string {
	modules := slices.Sorted(slices.Values(plan.Modules))
	moduleList := strings.Join(modules, ",")

	args := []string{
		"--database=" + plan.Database,
		"--init=" + moduleList,
		"--update=" + moduleList,
		"--test-enable",
		"--log-db=" + plan.Database,
		"--log-db-level=" + e.logDBLevel,
		"--stop-after-init",
	}

	if len(plan.Tags) > 0 {
		tags := slices.Sorted(slices.Values(plan.Tags))
		args = append(args, "--test-tags="+strings.Join(tags, ","))
	}

	return append(args, e.extraArgs...)
}

// Execute implements [Executor]. A server that cannot be started is an error.
// A server that exits non-zero is only logged: test failures are judged from
// the log records, not from the exit status.
func (e *OdooExecutor) Execute(ctx context.Context, plan Plan) error {
	validateErr := plan.Validate()
	if validateErr != nil {
		return validateErr
	}

	args := e.Args(plan)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	e.logger.InfoContext(ctx, "starting test server", "binary", e.binary, "args", args)

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && ctx.Err() == nil {
		e.logger.WarnContext(ctx, "test server exited with failure status",
			"binary", e.binary, "exit_code", exitErr.ExitCode())

		return nil
	}

	return fmt.Errorf("%w: %w", ErrServerStart, runErr)
}
