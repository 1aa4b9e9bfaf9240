package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// kvSchema is the single table backing the SQLite store. expires_at is a
// Unix timestamp in seconds; NULL means no expiry.
const kvSchema = `
CREATE TABLE IF NOT EXISTS state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER
);`

// SQLiteStore is the fallback Store backend for hosts without Redis.
// Expiry is lazy: expired rows are treated as absent on read and removed
// on the next write of the same key.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	forgetStmt *sql.Stmt

	// now is overridable so TTL behavior is testable without sleeping.
	now func() time.Time
}

// NewSQLite opens (or creates) the database at dbPath and prepares the
// statement set. Use ":memory:" for tests.
func NewSQLite(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statestore: opening %q: %w", dbPath, err)
	}

	// Single writer; the engine is sequential by design.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("statestore: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: creating state table: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger, now: time.Now}
	if err := s.prepare(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("statestore: sqlite backend ready", slog.String("path", dbPath))

	return s, nil
}

func (s *SQLiteStore) prepare() error {
	var err error

	if s.getStmt, err = s.db.Prepare(
		"SELECT value, expires_at FROM state WHERE key = ?",
	); err != nil {
		return fmt.Errorf("statestore: preparing get: %w", err)
	}

	if s.putStmt, err = s.db.Prepare(
		"INSERT INTO state (key, value, expires_at) VALUES (?, ?, ?) " +
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at",
	); err != nil {
		return fmt.Errorf("statestore: preparing put: %w", err)
	}

	if s.forgetStmt, err = s.db.Prepare(
		"DELETE FROM state WHERE key = ?",
	); err != nil {
		return fmt.Errorf("statestore: preparing forget: %w", err)
	}

	return nil
}

// Get returns the value for key, or ErrNotFound. Expired rows count as
// absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var (
		value     string
		expiresAt sql.NullInt64
	)

	err := s.getStmt.QueryRowContext(ctx, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}

	if err != nil {
		return "", fmt.Errorf("statestore: get %q: %w", key, err)
	}

	if expiresAt.Valid && s.now().Unix() > expiresAt.Int64 {
		return "", ErrNotFound
	}

	return value, nil
}

// Put stores value under key. A zero ttl stores without expiry.
func (s *SQLiteStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: s.now().Add(ttl).Unix(), Valid: true}
	}

	if _, err := s.putStmt.ExecContext(ctx, key, value, expiresAt); err != nil {
		return fmt.Errorf("statestore: put %q: %w", key, err)
	}

	return nil
}

// Forget removes key. Absent keys are not an error.
func (s *SQLiteStore) Forget(ctx context.Context, key string) error {
	if _, err := s.forgetStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("statestore: forget %q: %w", key, err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.putStmt, s.forgetStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}
