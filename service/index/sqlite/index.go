// Package sqlite provides a durable index backed by SQLite
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/viant/tripmanager/model/instance"
	"github.com/viant/tripmanager/service/index"
)

//go:embed schema.sql
var schemaSQL string

// Index stores active entries in a SQLite table
type Index struct {
	db *sql.DB
}

// Open creates or opens the database at dsn and applies the schema.
// The pool is limited to a single connection since SQLite has one writer.
func Open(dsn string) (*Index, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the database
func (i *Index) Close() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Put implements index.Index
func (i *Index) Put(ctx context.Context, entry *index.Entry) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO active_trips (trip_key, run_id, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(trip_key) DO UPDATE SET
			run_id = excluded.run_id,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		string(entry.Key), entry.RunID, string(entry.Status), entry.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put %v: %w", entry.Key, err)
	}
	return nil
}

// Remove implements index.Index
func (i *Index) Remove(ctx context.Context, key instance.Key) error {
	if _, err := i.db.ExecContext(ctx, `DELETE FROM active_trips WHERE trip_key = ?`, string(key)); err != nil {
		return fmt.Errorf("failed to remove %v: %w", key, err)
	}
	return nil
}

// List implements index.Index
func (i *Index) List(ctx context.Context) ([]*index.Entry, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT trip_key, run_id, status, updated_at
		FROM active_trips
		ORDER BY trip_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()
	var result []*index.Entry
	for rows.Next() {
		var key, runID, status string
		var updatedAt int64
		if err := rows.Scan(&key, &runID, &status, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		result = append(result, &index.Entry{
			Key:       instance.Key(key),
			RunID:     runID,
			Status:    instance.Status(status),
			UpdatedAt: time.UnixMilli(updatedAt).UTC(),
		})
	}
	return result, rows.Err()
}

var _ index.Index = (*Index)(nil)
