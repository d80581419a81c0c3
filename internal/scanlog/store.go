// Package scanlog persists scan run history to SQLite: one row per run and
// one row per resolved duplicate group, for later reporting.
package scanlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store manages run-history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// timeFormat keeps fixed-width nanoseconds so lexicographic ORDER BY on the
// stored string matches chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
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
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginRun records the start of a scan and returns its id.
func (s *Store) BeginRun(ctx context.Context, roots []string, quality string) (string, error) {
	id := uuid.NewString()
	rootsJSON, err := json.Marshal(roots)
	if err != nil {
		return "", fmt.Errorf("encode roots: %w", err)
	}
	err = s.execWithRetry(ctx,
		`INSERT INTO runs (id, started_at, roots, quality, status) VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(timeFormat), string(rootsJSON), quality, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordGroup appends one resolved group to a run.
func (s *Store) RecordGroup(ctx context.Context, rec GroupRecord) error {
	losersJSON, err := json.Marshal(rec.LoserPaths)
	if err != nil {
		return fmt.Errorf("encode loser paths: %w", err)
	}
	err = s.execWithRetry(ctx,
		`INSERT INTO run_groups (run_id, method, score, keep_path, loser_paths, loser_bytes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Method, rec.Score, rec.KeepPath, string(losersJSON), rec.LoserBytes)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

// FinishRun closes out a run with its final counters and status.
func (s *Store) FinishRun(ctx context.Context, id string, filesScanned, groupsFound int, bytesReclaimable int64, status string) error {
	err := s.execWithRetry(ctx,
		`UPDATE runs SET finished_at = ?, files_scanned = ?, groups_found = ?, bytes_reclaimable = ?, status = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(timeFormat), filesScanned, groupsFound, bytesReclaimable, status, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, ''), roots, quality,
		        files_scanned, groups_found, bytes_reclaimable, status
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished, rootsJSON string
		if err := rows.Scan(&run.ID, &started, &finished, &rootsJSON, &run.Quality,
			&run.FilesScanned, &run.GroupsFound, &run.BytesReclaimable, &run.Status); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.StartedAt, _ = time.Parse(timeFormat, started)
		if finished != "" {
			run.FinishedAt, _ = time.Parse(timeFormat, finished)
		}
		if err := json.Unmarshal([]byte(rootsJSON), &run.Roots); err != nil {
			return nil, fmt.Errorf("decode roots: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GroupsForRun returns the groups recorded for one run in insertion order.
func (s *Store) GroupsForRun(ctx context.Context, runID string) ([]GroupRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, method, score, keep_path, loser_paths, loser_bytes
		 FROM run_groups WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var records []GroupRecord
	for rows.Next() {
		var (
			rec        GroupRecord
			losersJSON string
		)
		if err := rows.Scan(&rec.RunID, &rec.Method, &rec.Score, &rec.KeepPath, &losersJSON, &rec.LoserBytes); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		if err := json.Unmarshal([]byte(losersJSON), &rec.LoserPaths); err != nil {
			return nil, fmt.Errorf("decode loser paths: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestRun returns the most recent run, or false when the history is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, bool, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[0], true, nil
}
