// Package sqlstore implements the domain stores on database/sql with
// Squirrel-built queries. PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite)
// share the same queries; only placeholders and time encoding differ.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"   // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/davidbz/polyglot/internal/observability"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Dialect selects the SQL flavour.
type Dialect string

const (
	// Postgres uses lib/pq and $n placeholders.
	Postgres Dialect = "postgres"
	// SQLite uses modernc.org/sqlite and ? placeholders.
	SQLite Dialect = "sqlite"
)

// sqliteTimeLayout is fixed width so stored times compare as strings.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// DB is a connection pool bound to a dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
	SQ      sq.StatementBuilderType
}

// NewDB wraps an open pool.
func NewDB(db *sql.DB, dialect Dialect) *DB {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == Postgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &DB{DB: db, Dialect: dialect, SQ: builder}
}

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	driver, err := driverName(dialect)
	if err != nil {
		return nil, err
	}

	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == SQLite {
		// Writers serialize on the file lock anyway.
		pool.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := NewDB(pool, dialect)
	if err := db.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	observability.FromContext(ctx).Info("database connection established",
		observability.String("dialect", string(dialect)))

	return db, nil
}

func driverName(dialect Dialect) (string, error) {
	switch dialect {
	case Postgres:
		return "postgres", nil
	case SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", dialect)
	}
}

// Migrate applies the embedded migrations of the dialect that are not yet
// recorded in schema_migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	dir := path.Join("migrations", string(db.Dialect))
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		applied, err := db.isApplied(ctx, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		body, err := migrationsFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		query, args, err := db.SQ.Insert("schema_migrations").
			Columns("name", "applied_at").
			Values(name, time.Now().UTC().Format(time.RFC3339)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build migration record: %w", err)
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

func (db *DB) isApplied(ctx context.Context, name string) (bool, error) {
	query, args, err := db.SQ.Select("1").From("schema_migrations").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build migration check: %w", err)
	}

	var n int
	err = db.QueryRowContext(ctx, query, args...).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	return true, nil
}

// timeArg encodes t for the dialect. Zero times are stored as NULL.
func (db *DB) timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	if db.Dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// nullTime scans TIMESTAMPTZ values as well as the text encoding used on
// SQLite.
type nullTime struct {
	Time time.Time
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time = time.Time{}
		return nil
	case time.Time:
		n.Time = v.UTC()
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (n *nullTime) parse(s string) error {
	if s == "" {
		n.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	n.Time = t.UTC()
	return nil
}
