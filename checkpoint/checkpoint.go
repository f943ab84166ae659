// Package checkpoint records per-item outcomes of a run in SQLite so an
// interrupted run can be resumed without redoing finished items.
package checkpoint

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcap107/study-gittables/types"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a fresh, time-ordered run identifier.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Store is a checkpoint database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Run is one recorded invocation of a pipeline.
type Run struct {
	ID         string
	Pipeline   string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    json.RawMessage
}

// Open opens or creates the checkpoint database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; workers checkpoint concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS items (
	pipeline TEXT NOT NULL,
	group_id TEXT NOT NULL,
	member_id TEXT NOT NULL,
	status TEXT NOT NULL,
	payload TEXT,
	error TEXT,
	run_id TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY(pipeline, group_id, member_id)
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	summary TEXT
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(pipeline, status);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// StartRun records the start of run id of pipeline.
func (s *Store) StartRun(ctx context.Context, id, pipeline string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, pipeline, started_at) VALUES (?, ?, ?)`,
		id, pipeline, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// FinishRun stores the summary of a run.
func (s *Store) FinishRun(ctx context.Context, runID string,
	summary any) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), string(data), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// Runs lists the recorded runs of pipeline, oldest first.
func (s *Store) Runs(ctx context.Context, pipeline string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, pipeline, started_at, COALESCE(finished_at, ''),
	COALESCE(summary, '')
FROM runs WHERE pipeline = ? ORDER BY id`, pipeline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished, summary string
		if err := rows.Scan(&run.ID, &run.Pipeline, &started, &finished,
			&summary); err != nil {
			return nil, err
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished != "" {
			run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		}
		if summary != "" {
			run.Summary = json.RawMessage(summary)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) upsert(ctx context.Context, pipeline, runID string,
	item types.Item, status string, payload, errText sql.NullString) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO items (pipeline, group_id, member_id, status, payload, error,
	run_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(pipeline, group_id, member_id) DO UPDATE SET
	status = excluded.status,
	payload = excluded.payload,
	error = excluded.error,
	run_id = excluded.run_id,
	updated_at = excluded.updated_at`,
		pipeline, item.GroupID, item.MemberID, status, payload, errText,
		runID, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Succeed stores the record produced for item.
func (s *Store) Succeed(ctx context.Context, pipeline, runID string,
	item types.Item, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, pipeline, runID, item, StatusSucceeded,
		sql.NullString{String: string(data), Valid: true},
		sql.NullString{}); err != nil {
		return fmt.Errorf("checkpoint %s: %w", item, err)
	}
	return nil
}

// Fail stores the failure of item. Failed items are retried on resume.
func (s *Store) Fail(ctx context.Context, pipeline, runID string,
	item types.Item, failure error) error {
	if err := s.upsert(ctx, pipeline, runID, item, StatusFailed,
		sql.NullString{},
		sql.NullString{String: failure.Error(), Valid: true}); err != nil {
		return fmt.Errorf("checkpoint %s: %w", item, err)
	}
	return nil
}

// Completed returns the stored records of succeeded items of pipeline,
// keyed by types.Item.Key.
func Completed[T any](ctx context.Context, s *Store,
	pipeline string) (map[string]T, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT group_id, member_id, payload FROM items
WHERE pipeline = ? AND status = ?`, pipeline, StatusSucceeded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completed := make(map[string]T)
	for rows.Next() {
		var item types.Item
		var payload string
		if err := rows.Scan(&item.GroupID, &item.MemberID,
			&payload); err != nil {
			return nil, err
		}
		var record T
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", item, err)
		}
		completed[item.Key()] = record
	}
	return completed, rows.Err()
}

// Failures returns the stored error text of failed items of pipeline.
func (s *Store) Failures(ctx context.Context,
	pipeline string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT group_id, member_id, COALESCE(error, '') FROM items
WHERE pipeline = ? AND status = ?`, pipeline, StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := make(map[string]string)
	for rows.Next() {
		var item types.Item
		var message string
		if err := rows.Scan(&item.GroupID, &item.MemberID,
			&message); err != nil {
			return nil, err
		}
		failures[item.Key()] = message
	}
	return failures, rows.Err()
}
