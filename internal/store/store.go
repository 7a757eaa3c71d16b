package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/kasir/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is stored in PRAGMA user_version.
// Version 1 adds the one-open-shift-per-cashier index.
const currentSchemaVersion = 1

// Store is the till's local durable storage: record collections, the sync
// queue and its dead letters, all in one SQLite file.
type Store struct {
	ops
	db *sql.DB
}

// Tx is a store view bound to one SQLite transaction. It offers the same
// record and queue operations as Store.
type Tx struct {
	ops
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops implements every record and queue operation against a querier.
type ops struct {
	q querier
}

// Open opens the SQLite database at path, creating it when missing, and
// brings its schema up to date. Opening an existing database again is safe.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	steps := []struct {
		what string
		run  func(*sql.DB) error
	}{
		{"connect to database", func(db *sql.DB) error { return db.Ping() }},
		{"apply pragmas", applyPragmas},
		{"apply schema", applySchema},
	}
	for _, step := range steps {
		if err := step.run(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to %s: %w", step.what, err)
		}
	}

	return &Store{ops: ops{q: db}, db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for schema inspection and maintenance.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a single SQLite transaction. The transaction commits
// only if fn returns nil; any error (or panic) rolls back every write made
// through the *Tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPersistenceError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{ops: ops{q: sqlTx}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.NewPersistenceError("commit transaction", err)
	}
	return nil
}

// ClearAll wipes every collection, the sync queue and the dead letters in
// one transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.ClearAll(ctx)
	})
}

// DeadLetter moves a pending operation to the dead letters atomically.
func (s *Store) DeadLetter(ctx context.Context, op domain.PendingOperation, lastErr string, at time.Time) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.DeadLetter(ctx, op, lastErr, at)
	})
}

// RequeueDeadLetter moves a dead letter back onto the queue atomically and
// returns the new operation id.
func (s *Store) RequeueDeadLetter(ctx context.Context, id int64, at time.Time) (int64, error) {
	var opID int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		opID, err = tx.RequeueDeadLetter(ctx, id, at)
		return err
	})
	return opID, err
}

// pragmas hold for every connection. busy_timeout lets a second process
// (the CLI next to a running sync loop) wait for the write lock.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

func applyPragmas(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// applySchema is idempotent: schema.sql only uses IF NOT EXISTS and
// migrations are gated on user_version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the open-shift uniqueness backstop. Whatever shift scope
// the till is configured with, one cashier never holds two open shifts.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_open_cashier
		ON shifts(json_extract(data, '$.cashier_id'))
		WHERE json_extract(data, '$.status') = 'open'
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma is a test hook comparing a pragma with its expected value.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", name, got, want)
	}
	return nil
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
