package storage

import (
	"context"
	"database/sql"
)

// Execer is satisfied by both *sql.DB and *sql.Tx, letting the query
// helpers in this package run against either a bare connection or an
// in-flight transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Queryer is the read-side counterpart of Execer.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecQueryer is satisfied by *sql.DB and *sql.Tx.
type ExecQueryer interface {
	Execer
	Queryer
}

// WithTx runs fn inside a transaction on db.Writer, committing on success
// and rolling back on any error, including a panic (re-raised after
// rollback). A SQLITE_BUSY collision with a concurrent reader transaction
// is retried with exponential backoff, bounded by db.busyTimeout, instead
// of failing the caller outright.
func WithTx(ctx context.Context, db *DB, fn func(tx *sql.Tx) error) error {
	return RetryBusy(db.busyTimeout, func() error {
		return runTx(ctx, db, fn)
	})
}

func runTx(ctx context.Context, db *DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
