package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

// DB wraps the single-writer / many-reader connection pair TagBox uses
// against one SQLite file, plus the advisory lock guarding it against a
// second process opening the same library concurrently.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	lock   *flock.Flock
	path   string

	// busyTimeout bounds how long WithTx retries a transaction that
	// collides with SQLITE_BUSY before giving up.
	busyTimeout time.Duration
}

// Options configures how Open tunes the SQLite connection.
type Options struct {
	JournalMode    string
	MaxConnections int
	BusyTimeoutMs  int
	SyncMode       string
}

// DefaultOptions mirrors internal/config.Default().Database.
func DefaultOptions() Options {
	return Options{JournalMode: "WAL", MaxConnections: 5, BusyTimeoutMs: 5000, SyncMode: "NORMAL"}
}

// Open opens (creating if absent) the SQLite database at path, applies the
// configured PRAGMAs, takes the advisory process lock, and ensures the
// schema exists at the current version.
func Open(path string, opts Options) (*DB, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire library lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("library %s is already open by another process", path)
	}

	writerDSN := fmt.Sprintf("file:%s?_busy_timeout=%d", path, opts.BusyTimeoutMs)
	writer, err := sql.Open("sqlite3", writerDSN)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open writer connection: %w", err)
	}
	writer.SetMaxOpenConns(1)

	readerDSN := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", path, opts.BusyTimeoutMs)
	reader, err := sql.Open("sqlite3", readerDSN)
	if err != nil {
		writer.Close()
		lock.Unlock()
		return nil, fmt.Errorf("open reader connection: %w", err)
	}
	if opts.MaxConnections > 0 {
		reader.SetMaxOpenConns(opts.MaxConnections)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_mode = %s", orDefault(opts.JournalMode, "WAL")),
		fmt.Sprintf("PRAGMA synchronous = %s", orDefault(opts.SyncMode, "NORMAL")),
	}
	for _, p := range pragmas {
		if _, err := writer.Exec(p); err != nil {
			writer.Close()
			reader.Close()
			lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	if _, err := reader.Exec("PRAGMA foreign_keys = ON"); err != nil {
		writer.Close()
		reader.Close()
		lock.Unlock()
		return nil, fmt.Errorf("apply pragma on reader: %w", err)
	}

	busyTimeout := time.Duration(opts.BusyTimeoutMs) * time.Millisecond
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	db := &DB{Writer: writer, Reader: reader, lock: lock, path: path, busyTimeout: busyTimeout}

	version, err := GetSchemaVersion(writer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	}
	if version == "0" {
		if err := CreateSchema(writer); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return db, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Close releases both connections and the advisory lock.
func (db *DB) Close() error {
	var firstErr error
	if err := db.Writer.Close(); err != nil {
		firstErr = err
	}
	if err := db.Reader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// RetryBusy retries fn with exponential backoff when SQLite reports the
// database is busy, bounded by maxWait. Writes are already serialized
// through a single connection, so this only guards against a reader
// transaction holding a lock the writer briefly collides with.
func RetryBusy(maxWait time.Duration, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = maxWait

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && isBusyErr(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, b)
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "SQLITE_BUSY")
}
