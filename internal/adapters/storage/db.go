package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by stores when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// Execer is satisfied by SQLDB implementations and by *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Dialect names
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DefaultSchema is the hosted backend schema holding the tracker's tables and views.
const DefaultSchema = "ysa"

// Dialect captures the differences between the local SQLite backend and hosted Postgres:
// placeholder style and schema-qualified relation names.
type Dialect struct {
	Name   string
	Schema string
}

// SQLite returns the dialect for the local database file.
func SQLite() Dialect {
	return Dialect{Name: DialectSQLite}
}

// Postgres returns the dialect for the hosted database, scoped to schema.
func Postgres(schema string) Dialect {
	if schema == "" {
		schema = DefaultSchema
	}
	return Dialect{Name: DialectPostgres, Schema: schema}
}

// Builder returns a squirrel statement builder with the dialect's placeholder format.
func (d Dialect) Builder() sq.StatementBuilderType {
	if d.Name == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Table returns the relation name qualified by the dialect's schema.
func (d Dialect) Table(name string) string {
	if d.Schema == "" {
		return name
	}
	return d.Schema + "." + name
}

// OpenSQLite opens the local database with WAL mode, foreign keys and a busy timeout.
// PRE: path is a writable file path or ":memory:"
// POST: Returns a pinged connection pool
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	if path == ":memory:" {
		dsn = path + "?_pragma=foreign_keys(ON)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return db, nil
}

// OpenPostgres connects to the hosted backend, retrying until it answers or the
// deadline passes, and exposes the pool as a *sql.DB.
// PRE: url is a postgres connection string
// POST: Returns a pinged *sql.DB and a closer releasing the pool
func OpenPostgres(ctx context.Context, url string, deadline time.Duration) (*sql.DB, func(), error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.MaxConns = 10

	var pool *pgxpool.Pool
	giveUp := time.Now().Add(deadline)
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pool, err = pgxpool.NewWithConfig(attemptCtx, cfg)
		if err == nil {
			if err = pool.Ping(attemptCtx); err == nil {
				cancel()
				break
			}
			pool.Close()
		}
		cancel()

		if time.Now().After(giveUp) {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Warn("db_connect_retry", "error", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	db := stdlib.OpenDBFromPool(pool)
	closer := func() {
		db.Close()
		pool.Close()
	}
	return db, closer, nil
}

// Query runs a squirrel SELECT.
func Query(ctx context.Context, db SQLDB, q sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, query, args...)
}

// QueryRow runs a squirrel SELECT expected to return at most one row.
func QueryRow(ctx context.Context, db SQLDB, q sq.Sqlizer) (*sql.Row, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return db.QueryRowContext(ctx, query, args...), nil
}

// Exec runs a squirrel INSERT/UPDATE/DELETE against a database or transaction.
func Exec(ctx context.Context, db Execer, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, query, args...)
}

// NotFound converts sql.ErrNoRows into ErrNotFound, leaving other errors unchanged.
func NotFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return err
}
