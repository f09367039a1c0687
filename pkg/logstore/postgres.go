package logstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
)

// recordsQuery reads the server's ir_logging table in insertion order.
const recordsQuery = `SELECT id, create_date,
	COALESCE(name, ''), COALESCE(type, ''), COALESCE(dbname, ''), COALESCE(level, ''),
	COALESCE(message, ''), COALESCE(path, ''), COALESCE(func, ''), COALESCE(line, '')
FROM ir_logging
WHERE $1 = '' OR dbname = $1
ORDER BY id`

// PostgresStore reads records from the ir_logging table of a PostgreSQL
// database. Each query opens its own connection and closes it before returning.
type PostgresStore struct {
	dsn string
}

// NewPostgresStore creates a store for dsn (URL or keyword/value form).
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

// Records implements [Store].
func (s *PostgresStore) Records(ctx context.Context, session string) (records []outcome.Record, err error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrQuery, err)
	}

	defer func() {
		closeErr := conn.Close(context.WithoutCancel(ctx))
		if closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close connection: %w", closeErr))
		}
	}()

	rows, err := conn.Query(ctx, recordsQuery, session)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	records, err = pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	return records, nil
}

func scanRecord(row pgx.CollectableRow) (outcome.Record, error) {
	var (
		rec     outcome.Record
		created *time.Time
		line    string
	)

	err := row.Scan(&rec.ID, &created, &rec.Name, &rec.Type, &rec.DBName, &rec.Level,
		&rec.Message, &rec.Path, &rec.Func, &line)
	if err != nil {
		return outcome.Record{}, fmt.Errorf("scan ir_logging row: %w", err)
	}

	if created != nil {
		rec.Time = *created
	}

	rec.Line = parseLine(line)

	return rec, nil
}

// parseLine converts the textual line column; non-numeric values become zero.
func parseLine(line string) int {
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0
	}

	return n
}
