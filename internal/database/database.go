package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tablequeue/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements the repository methods over a querier.
type queries struct {
	q querier
}

// DB is the SQLite store.
type DB struct {
	*sql.DB
	queries
	path   string
	logger *zerolog.Logger
}

var _ domain.Store = (*DB)(nil)

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: :memory: databases are per connection, and SQLite
	// allows a single writer anyway.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("database initialized")
	}

	return &DB{
		DB:      sqlDB,
		queries: queries{q: sqlDB},
		path:    path,
		logger:  logger,
	}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// WithinTx runs fn inside a transaction. Any error from fn rolls back.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.QueueRepository) error) error {
	return db.withTx(ctx, func(q *queries) error {
		return fn(ctx, q)
	})
}

func (db *DB) withTx(ctx context.Context, fn func(q *queries) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shop_types (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS shops (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            full_address TEXT NOT NULL DEFAULT '',
            lat REAL NOT NULL DEFAULT 0,
            lng REAL NOT NULL DEFAULT 0,
            phone_number TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            shop_img TEXT NOT NULL DEFAULT '',
            shop_title TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            shop_type_id TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS customers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            phone_number TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            profile_img TEXT NOT NULL DEFAULT '',
            is_verified BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS table_types (
            id TEXT PRIMARY KEY,
            shop_id TEXT NOT NULL,
            type TEXT NOT NULL,
            capacity INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS queues (
            id TEXT PRIMARY KEY,
            shop_id TEXT NOT NULL,
            table_type_id TEXT NOT NULL,
            customer_id TEXT NOT NULL,
            table_no TEXT NOT NULL DEFAULT '',
            queue_number INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL,
            queue_qr TEXT,
            estimated_wait_time INTEGER NOT NULL DEFAULT 0,
            notification_sent BOOLEAN NOT NULL DEFAULT 0,
            user_requirements TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS table_status (
            id TEXT PRIMARY KEY,
            shop_id TEXT NOT NULL,
            table_type_id TEXT NOT NULL,
            table_no TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            queue_id TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS queue_history (
            id TEXT PRIMARY KEY,
            queue_id TEXT NOT NULL,
            shop_id TEXT NOT NULL,
            table_type_id TEXT NOT NULL,
            customer_id TEXT NOT NULL,
            table_no TEXT NOT NULL DEFAULT '',
            queue_number INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL,
            queue_qr TEXT,
            estimated_wait_time INTEGER NOT NULL DEFAULT 0,
            user_requirements TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            completed_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS otps (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            contact TEXT NOT NULL,
            code TEXT NOT NULL,
            expires_at DATETIME NOT NULL,
            is_verified BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_table_types_shop ON table_types(shop_id)`,
		`CREATE INDEX IF NOT EXISTS idx_queues_shop_type_status ON queues(shop_id, table_type_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_queues_customer ON queues(customer_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_table_status_active
            ON table_status(shop_id, table_type_id, table_no) WHERE is_active = 1`,
		`CREATE INDEX IF NOT EXISTS idx_queue_history_shop ON queue_history(shop_id, completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email)`,
		`CREATE INDEX IF NOT EXISTS idx_otps_contact ON otps(type, contact, is_verified)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("error executing query %s: %w", stmt, err)
		}
	}
	return nil
}

// wrapErr maps driver errors onto the domain taxonomy.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
