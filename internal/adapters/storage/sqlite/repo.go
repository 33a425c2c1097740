// Package sqlite keeps a queryable index of per-day totals next to the journal files.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/idleledger/internal/app"
	"github.com/evanschultz/idleledger/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"

// Repository stores day totals in sqlite.
type Repository struct {
	db *sql.DB
}

// Open opens or creates the index database at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory index.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each connection would get its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS day_totals (
			day TEXT PRIMARY KEY,
			activity_seconds INTEGER NOT NULL DEFAULT 0,
			break_seconds INTEGER NOT NULL DEFAULT 0,
			block_count INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// UpsertDay inserts or replaces the row for entry.Day.
func (r *Repository) UpsertDay(ctx context.Context, entry app.DayIndexEntry) error {
	return upsertDay(ctx, r.db, entry)
}

// GetDay returns one row, or app.ErrNotFound.
func (r *Repository) GetDay(ctx context.Context, day domain.Day) (app.DayIndexEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT day, activity_seconds, break_seconds, block_count, updated_at
		FROM day_totals
		WHERE day = ?
	`, day.String())
	return scanEntry(row)
}

// ListDays returns up to limit rows, newest day first. A limit <= 0 returns every row.
func (r *Repository) ListDays(ctx context.Context, limit int) ([]app.DayIndexEntry, error) {
	query := `
		SELECT day, activity_seconds, break_seconds, block_count, updated_at
		FROM day_totals
		ORDER BY day DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []app.DayIndexEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ReplaceAll swaps the whole index for entries in one transaction.
func (r *Repository) ReplaceAll(ctx context.Context, entries []app.DayIndexEntry) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reindex: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM day_totals`); err != nil {
		return fmt.Errorf("clear day totals: %w", err)
	}
	for _, entry := range entries {
		if err = upsertDay(ctx, tx, entry); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reindex: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsertDay writes one row through db.
func upsertDay(ctx context.Context, db execer, entry app.DayIndexEntry) error {
	if entry.Day.IsZero() {
		return fmt.Errorf("upsert day totals: %w", domain.ErrInvalidDay)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO day_totals(day, activity_seconds, break_seconds, block_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			activity_seconds = excluded.activity_seconds,
			break_seconds = excluded.break_seconds,
			block_count = excluded.block_count,
			updated_at = excluded.updated_at
	`, entry.Day.String(), entry.Totals.ActivitySeconds, entry.Totals.BreakSeconds, entry.BlockCount, ts(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert day totals: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry decodes one day_totals row.
func scanEntry(s scanner) (app.DayIndexEntry, error) {
	var (
		entry      app.DayIndexEntry
		dayRaw     string
		updatedRaw string
	)
	if err := s.Scan(&dayRaw, &entry.Totals.ActivitySeconds, &entry.Totals.BreakSeconds, &entry.BlockCount, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return app.DayIndexEntry{}, app.ErrNotFound
		}
		return app.DayIndexEntry{}, err
	}
	day, err := domain.ParseDay(dayRaw)
	if err != nil {
		return app.DayIndexEntry{}, fmt.Errorf("decode day_totals.day: %w", err)
	}
	entry.Day = day
	entry.UpdatedAt = parseTS(updatedRaw)
	return entry, nil
}

// ts formats t for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored timestamp; malformed values decode as the zero time.
func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
