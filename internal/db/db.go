// Package db is the relational store behind grove. SQLite (a file under the
// base directory) is the default; Postgres is reached through pgx's
// database/sql driver. Queries are written once with ? placeholders and
// rebound per dialect.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/domain"
)

// Dialect selects placeholder style and driver quirks.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DB wraps the connection pool with its dialect.
type DB struct {
	sql     *sql.DB
	dialect Dialect
}

// Init initializes the SQLite database at baseDir/grove.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.grove.
func Init(baseDir string) (*DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "grove.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(conn); err != nil {
		conn.Close()
		return nil, err
	}

	d := &DB{sql: conn, dialect: SQLite}
	if err := d.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)
	return d, nil
}

// Open connects to the store selected by cfg. SQLite lives under baseDir;
// Postgres uses cfg.Database.URL.
func Open(ctx context.Context, cfg *config.Config, baseDir string) (*DB, error) {
	var (
		d   *DB
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		d, err = openPostgres(ctx, cfg.Database.URL)
	default:
		d, err = Init(baseDir)
	}
	if err != nil {
		return nil, err
	}
	ConfigurePool(d, cfg)
	return d, nil
}

func openPostgres(ctx context.Context, url string) (*DB, error) {
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	d := &DB{sql: conn, dialect: Postgres}
	if err := d.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(d *DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.Database.MaxOpenConns > 0 {
		d.sql.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		d.sql.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
}

// Close releases the pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Dialect reports the backing database.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, d.rebind(query), args...)
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// migrate applies schema migrations recorded in schema_version.
func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	version, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i, stmts := range migrations {
		target := i + 1
		if version >= target {
			continue
		}
		err := d.inTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := d.exec(ctx, tx, `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
				target, time.Now().UnixMilli())
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", target, err)
		}
	}

	return d.seedCategories(ctx)
}

// SchemaVersion returns the highest applied migration.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := d.sql.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

func (d *DB) seedCategories(ctx context.Context) error {
	now := time.Now().UnixMilli()
	for _, name := range domain.DefaultCategories {
		_, err := d.exec(ctx, d.sql,
			`INSERT INTO categories (id, name, name_norm, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (name_norm) DO NOTHING`,
			domain.NewID(), name, domain.NormalizeCategory(name), now)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", name, err)
		}
	}
	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(conn *sql.DB) error {
	var journalMode string
	if err := conn.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}
