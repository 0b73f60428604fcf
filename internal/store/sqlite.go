package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/neuroscanx/internal/domain"
	"github.com/ashureev/neuroscanx/internal/shared"
	_ "modernc.org/sqlite"
)

const maxWriteRetries = 3

// SQLiteStore implements AccountRepository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLiteStore(db)
}

// newSQLiteStore verifies db and prepares its schema. db is closed when
// either step fails.
func newSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS accounts (
		email TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		password_hash BLOB NOT NULL,
		last_login_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetAccount retrieves an account by email.
func (s *SQLiteStore) GetAccount(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT email, name, password_hash, last_login_at, created_at, updated_at
		FROM accounts WHERE email = ?`

	row := s.db.QueryRowContext(ctx, query, email)

	var acc domain.Account
	var lastLogin sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&acc.Email, &acc.Name, &acc.PasswordHash, &lastLogin, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account row: %w", err)
	}

	if lastLogin.Valid {
		acc.LastLoginAt = time.Unix(lastLogin.Int64, 0)
	}
	acc.CreatedAt = time.Unix(createdAt, 0)
	acc.UpdatedAt = time.Unix(updatedAt, 0)

	return &acc, nil
}

// CreateAccount inserts a new account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	query := `
	INSERT INTO accounts (email, name, password_hash, last_login_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	var lastLogin interface{}
	if !acc.LastLoginAt.IsZero() {
		lastLogin = acc.LastLoginAt.Unix()
	}

	err := withRetry(ctx, "create account", func() error {
		_, err := s.db.ExecContext(ctx, query,
			acc.Email, acc.Name, acc.PasswordHash, lastLogin,
			acc.CreatedAt.Unix(), acc.UpdatedAt.Unix(),
		)
		return err
	})
	if shared.IsSQLiteConstraintError(err) {
		return fmt.Errorf("create account %s: %w", acc.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpdateLastLogin records a successful login.
func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, email string, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = ?, updated_at = ? WHERE email = ?`

	var rows int64
	err := withRetry(ctx, "update last login", func() error {
		result, err := s.db.ExecContext(ctx, query, at.Unix(), time.Now().Unix(), email)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update last_login_at: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastLogin affected 0 rows", "email", email)
	}
	return nil
}

// withRetry retries op with exponential backoff while SQLite reports a
// busy or locked database.
func withRetry(ctx context.Context, name string, op func() error) error {
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxWriteRetries; i++ {
		err = op()
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i == maxWriteRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("Database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", name, maxWriteRetries, err)
}
