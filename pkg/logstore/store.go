// Package logstore reads the log records a test session wrote.
package logstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendFile     = "file"
)

// Sentinel errors.
var (
	// ErrQuery wraps every failure to read records; a verdict cannot be produced without them.
	ErrQuery = errors.New("query log records")
	// ErrUnknownBackend indicates an unsupported store backend name.
	ErrUnknownBackend = errors.New("unknown log store backend")
	// ErrMissingPath indicates a file backend without a path.
	ErrMissingPath = errors.New("file log store requires a path")
)

// Store returns the full ordered record collection of one session. Session is
// the database the test server ran against; an empty session selects every
// record.
type Store interface {
	Records(ctx context.Context, session string) ([]outcome.Record, error)
}

// Options selects and configures a [Store].
type Options struct {
	Backend string
	DSN     string
	Path    string
}

// Open builds the store described by opts. For the postgres backend an empty
// DSN connects to the session database itself.
func Open(opts Options, database string) (Store, error) {
	switch opts.Backend {
	case "", BackendPostgres:
		dsn := opts.DSN
		if dsn == "" {
			dsn = "dbname=" + database
		}

		return NewPostgresStore(dsn), nil
	case BackendFile:
		if opts.Path == "" {
			return nil, ErrMissingPath
		}

		return NewFileStore(opts.Path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// SessionStore opens the backend for each queried session. With the postgres
// backend and no DSN every session is read from its own database.
type SessionStore struct {
	opts Options
}

// NewSessionStore creates a store that defers opening until a query.
func NewSessionStore(opts Options) *SessionStore {
	return &SessionStore{opts: opts}
}

// Records implements [Store].
func (s *SessionStore) Records(ctx context.Context, session string) ([]outcome.Record, error) {
	store, err := Open(s.opts, session)
	if err != nil {
		return nil, err
	}

	return store.Records(ctx, session)
}
