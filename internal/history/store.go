// Package history persists completed episodes and pipeline runs in SQLite so
// later runs can skip work that already produced an output.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reeler/internal/episode"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// Entry is one completed episode.
type Entry struct {
	EpisodeID   string
	Title       string
	OutputPath  string
	Duration    time.Duration
	Elapsed     time.Duration
	SizeBytes   int64
	RunID       string
	CompletedAt time.Time
}

// Run summarizes one pipeline invocation.
type Run struct {
	ID           string
	Manifest     string
	Episodes     int
	Status       string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store is the history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun records the beginning of a pipeline run.
func (s *Store) StartRun(ctx context.Context, id, manifest string, episodes int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, manifest, episodes, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, manifest, episodes, RunRunning, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, runErr error) error {
	var message any
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, message, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Record stores a completed episode, replacing an earlier entry for the same ID.
func (s *Store) Record(ctx context.Context, runID string, c episode.Completion) error {
	completedAt := c.FinishedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completed_episodes (
            episode_id, title, output_path, duration_ms, elapsed_ms, size_bytes, run_id, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(episode_id) DO UPDATE SET
            title = excluded.title,
            output_path = excluded.output_path,
            duration_ms = excluded.duration_ms,
            elapsed_ms = excluded.elapsed_ms,
            size_bytes = excluded.size_bytes,
            run_id = excluded.run_id,
            completed_at = excluded.completed_at`,
		c.EpisodeID,
		c.Title,
		c.OutputPath,
		c.Duration.Milliseconds(),
		c.Elapsed.Milliseconds(),
		c.SizeBytes,
		nullableString(runID),
		formatTime(completedAt),
	)
	if err != nil {
		return fmt.Errorf("record episode %s: %w", c.EpisodeID, err)
	}
	return nil
}

// Completed returns the subset of ids that already have a recorded output.
func (s *Store) Completed(ctx context.Context, ids []string) (map[string]bool, error) {
	done := make(map[string]bool)
	if len(ids) == 0 {
		return done, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT episode_id FROM completed_episodes WHERE episode_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("query completed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completed: %w", err)
		}
		done[id] = true
	}
	return done, rows.Err()
}

// List returns the most recently completed episodes, newest first. A limit
// of zero or less returns every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT episode_id, title, output_path, duration_ms, elapsed_ms, size_bytes,
        COALESCE(run_id, ''), completed_at FROM completed_episodes ORDER BY completed_at DESC, episode_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                     Entry
			durationMS, elapsedMS int64
			completedAt           string
		)
		if err := rows.Scan(&e.EpisodeID, &e.Title, &e.OutputPath, &durationMS, &elapsedMS, &e.SizeBytes, &e.RunID, &completedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		e.CompletedAt = parseTime(completedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs returns recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, manifest, episodes, status, COALESCE(error_message, ''), started_at, COALESCE(finished_at, '')
        FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                  Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Manifest, &r.Episodes, &r.Status, &r.ErrorMessage, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
