// Package ledger is an append-only SQLite log of submit attempts. Upload,
// attach and turn-in are not transactional, so a failed attempt can leave a
// file in Drive that no submission references; the ledger records the
// remote file ID of every attempt so the operator can find those files.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Outcome values for Entry.Outcome.
const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
)

// dirPerms is used when creating the database directory.
const dirPerms = 0o700

const (
	sqlInsert = `INSERT INTO submissions
		(course_id, assignment_id, file_name, file_id, submission_id,
		 outcome, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqlRecent = `SELECT id, course_id, assignment_id, file_name, file_id,
		submission_id, outcome, error_msg, created_at
		FROM submissions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one submit attempt.
type Entry struct {
	ID           int64     `json:"id"`
	CourseID     string    `json:"course_id"`
	AssignmentID string    `json:"assignment_id"`
	FileName     string    `json:"file_name"`
	FileID       string    `json:"file_id,omitempty"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ledger owns the database handle.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the ledger database at path and applies
// pending migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", path, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", path, err)
	}

	// Concurrent requests serialize on the single connection.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("submission ledger opened", slog.String("path", path))

	return &Ledger{db: db, logger: logger, nowFunc: time.Now}, nil
}

// runMigrations applies all pending schema migrations with the goose v3
// Provider API.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("ledger: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("ledger: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Record appends e. ID and CreatedAt are assigned here; the stored values
// are returned.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	e.CreatedAt = l.nowFunc().UTC()

	res, err := l.db.ExecContext(ctx, sqlInsert,
		e.CourseID, e.AssignmentID, e.FileName, e.FileID, e.SubmissionID,
		e.Outcome, e.Error, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: recording submission: %w", err)
	}

	if e.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("ledger: reading inserted id: %w", err)
	}

	return e, nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, sqlRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying recent submissions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}

	for rows.Next() {
		var (
			e       Entry
			created int64
		)

		if err := rows.Scan(&e.ID, &e.CourseID, &e.AssignmentID, &e.FileName, &e.FileID,
			&e.SubmissionID, &e.Outcome, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("ledger: scanning submission row: %w", err)
		}

		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating submission rows: %w", err)
	}

	return entries, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
