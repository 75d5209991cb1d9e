// Package database opens the SQL store shared by the repositories.
//
// Repositories write Postgres-style $n placeholders. When the kiosk runs on
// the embedded SQLite driver the queries are rebound to ? before execution,
// so placeholders must appear in ascending order and only once each.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps *sql.DB and rebinds placeholders for the configured dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Tx is a transaction that rebinds like DB.
type Tx struct {
	*sql.Tx
	dialect Dialect
}

// Execer is satisfied by both DB and Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open connects to driver ("postgres" or "sqlite") and pings it.
func Open(driver, dsn string) (*DB, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(driver)))
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	var sqlDB *sql.DB
	var err error
	switch dialect {
	case Postgres:
		sqlDB, err = sql.Open("postgres", dsn)
	case SQLite:
		sqlDB, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// one writer keeps "event + ledger entries" transactions serialized
			sqlDB.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}

	return &DB{DB: sqlDB, dialect: dialect}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	return filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Rebind converts $n placeholders to the dialect's form.
func (db *DB) Rebind(query string) string {
	return rebind(db.dialect, query)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.Rebind(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Rebind(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Rebind(query), args...)
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, dialect: db.dialect}, nil
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.Tx.ExecContext(ctx, rebind(tx.dialect, query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.Tx.QueryRowContext(ctx, rebind(tx.dialect, query), args...)
}

func rebind(dialect Dialect, query string) string {
	if dialect != SQLite || !strings.Contains(query, "$") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && isDigit(query[i+1]) {
			b.WriteByte('?')
			for i+1 < len(query) && isDigit(query[i+1]) {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure on either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// ToMillis and FromMillis convert timestamps to the BIGINT columns used by
// every table, which keeps ordering and range queries portable.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
