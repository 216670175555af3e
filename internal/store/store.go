package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a row the caller depends on does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid wraps rejected input values.
var ErrInvalid = errors.New("invalid")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dateArg formats t for DATE columns.
func dateArg(t time.Time) string {
	return t.Format(time.DateOnly)
}

// timestampArg formats t like CURRENT_TIMESTAMP so the two compare as text.
func timestampArg(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}
