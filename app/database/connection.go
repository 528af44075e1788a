package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

var (
	ErrStoreIO = errors.New("store I/O failure")
	ErrLocked  = errors.New("donation store is locked by another process")
)

// DB wraps the SQLite handle together with the single-writer lock that guards it.
type DB struct {
	*sql.DB
	path string
	lock *flock.Flock
}

// Open acquires the writer lock for path, opens the SQLite database and applies migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer: one connection serializes every statement and transaction.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, lock: lock}

	version, err := migrateSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("Database ready", "path", path, "schema_version", version)

	return db, nil
}

func (db *DB) Path() string {
	return db.path
}

// Close closes the database and releases the writer lock.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	err := db.DB.Close()
	if unlockErr := db.lock.Unlock(); unlockErr != nil && err == nil {
		err = fmt.Errorf("failed to release database lock: %w", unlockErr)
	}
	return err
}

// Snapshot writes a consistent copy of the database to dest.
func (db *DB) Snapshot(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("snapshot destination %s already exists", dest)
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("failed to snapshot database: %w: %w", ErrStoreIO, err)
	}
	return nil
}

func dsn(path string) string {
	query := url.Values{}
	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", "busy_timeout(5000)")
	query.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + query.Encode()
}
