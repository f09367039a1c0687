// Package execution runs a test session on the application server for a set
// of modules.
package execution

import (
	"context"
	"errors"
)

// ErrNoModules is returned when a plan selects nothing to test.
var ErrNoModules = errors.New("no modules to test")

// ErrNoDatabase is returned when a plan has no target database.
var ErrNoDatabase = errors.New("no target database")

// Plan describes one test session.
type Plan struct {
	// Database is the environment the session installs into and logs to.
	Database string
	// Modules are installed, upgraded, and tested. Order is irrelevant.
	Modules []string
	// Tags filter which tests run.
	Tags []string
}

// Validate checks the plan can be executed.
func (p Plan) Validate() error {
	if p.Database == "" {
		return ErrNoDatabase
	}

	if len(p.Modules) == 0 {
		return ErrNoModules
	}

	return nil
}

// Executor runs a test session. When Execute returns, every log record of the
// session must be readable from the log store.
type Executor interface {
	Execute(ctx context.Context, plan Plan) error
}

// ExecutorFunc adapts a function to [Executor].
type ExecutorFunc func(ctx context.Context, plan Plan) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, plan Plan) error {
	return f(ctx, plan)
}
