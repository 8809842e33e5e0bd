package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fluxmedia/internal/backend"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current snapshot schema version. The snapshot is a
// cache, so a mismatch is resolved by deleting the file.
const schemaVersion = 1

// ErrSchemaMismatch indicates the snapshot was written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists the last fetched history list in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore initializes or connects to the snapshot database at path.
func OpenStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored snapshot with entries, preserving their order.
func (s *Store) Save(ctx context.Context, entries []backend.HistoryEntry, fetchedAt time.Time) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin snapshot tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM history_entries"); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO history_entries (position, entry_id, url, format, output_hint) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare snapshot insert: %w", err)
		}
		defer stmt.Close()
		for i, entry := range entries {
			if _, err := stmt.ExecContext(ctx, i, string(entry.ID), entry.URL, entry.Format, entry.OutputHint); err != nil {
				return fmt.Errorf("insert snapshot entry %d: %w", i, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshot_meta (id, fetched_at) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET fetched_at = excluded.fetched_at",
			fetchedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("record snapshot time: %w", err)
		}
		return tx.Commit()
	})
}

// Load returns the stored snapshot in server order. An empty database yields
// no entries and a zero time.
func (s *Store) Load(ctx context.Context) ([]backend.HistoryEntry, time.Time, error) {
	var fetchedAt time.Time
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT fetched_at FROM snapshot_meta WHERE id = 1").Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return []backend.HistoryEntry{}, time.Time{}, nil
	case err != nil:
		return nil, time.Time{}, fmt.Errorf("read snapshot time: %w", err)
	}
	if fetchedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse snapshot time %q: %w", raw, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT entry_id, url, format, output_hint FROM history_entries ORDER BY position")
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	entries := []backend.HistoryEntry{}
	for rows.Next() {
		var (
			entry backend.HistoryEntry
			id    string
		)
		if err := rows.Scan(&id, &entry.URL, &entry.Format, &entry.OutputHint); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan snapshot entry: %w", err)
		}
		entry.ID = backend.EntryID(id)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate snapshot: %w", err)
	}
	return entries, fetchedAt, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: snapshot has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
