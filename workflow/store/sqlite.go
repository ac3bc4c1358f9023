// Package store provides CheckpointStorage implementations: in-memory
// (for tests), SQLite (single-process persistence), and MySQL
// (multi-process checkpoint sharing). Each satisfies
// workflow.CheckpointStorage, grounded on the teacher's graph/store
// package adapted from a generic Store[S] to the non-generic
// workflow.Checkpoint.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentflow-go/agentflow/workflow"
	"github.com/agentflow-go/agentflow/workflow/emit"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a CheckpointStorage backed by a single SQLite file,
// grounded on the teacher's graph/store/sqlite.go. It uses WAL mode so
// readers don't block on writers, and serializes checkpoints through
// the workflow package's Codec so dynamically typed SharedState and
// message payloads round-trip correctly.
type SQLiteStore struct {
	db    *sql.DB
	codec *workflow.Codec

	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at
// path and prepares its schema. registry must have every payload and
// SharedState type the workflow uses registered before any checkpoint
// is saved or loaded.
func NewSQLiteStore(path string, registry *workflow.TypeRegistry) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, codec: workflow.NewCodec(registry)}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			run_id TEXT NOT NULL,
			step_id INTEGER NOT NULL,
			data TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			label TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_label ON workflow_checkpoints(run_id, label)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key_value TEXT NOT NULL PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			id TEXT NOT NULL PRIMARY KEY,
			run_id TEXT NOT NULL,
			event_data TEXT NOT NULL,
			emitted_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_pending ON events_outbox(emitted_at, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store: closed")
	}
	return nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp workflow.Checkpoint) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	data, err := s.codec.Encode(cp)
	if err != nil {
		return fmt.Errorf("store: encode checkpoint: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_checkpoints (run_id, step_id, data, idempotency_key, label)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step_id) DO UPDATE SET
			data = excluded.data, idempotency_key = excluded.idempotency_key, label = excluded.label
	`, cp.RunID, cp.StepID, string(data), cp.IdempotencyKey, cp.Label)
	if err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO idempotency_keys (key_value) VALUES (?)`, cp.IdempotencyKey); err != nil {
		return fmt.Errorf("store: record idempotency key: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) scanCheckpoint(row *sql.Row) (workflow.Checkpoint, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return workflow.Checkpoint{}, workflow.ErrCheckpointStorageNotFound
		}
		return workflow.Checkpoint{}, fmt.Errorf("store: load checkpoint: %w", err)
	}
	cp, err := s.codec.Decode([]byte(data))
	if err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("store: decode checkpoint: %w", err)
	}
	return cp, nil
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, runID string, stepID int) (workflow.Checkpoint, error) {
	if err := s.checkClosed(); err != nil {
		return workflow.Checkpoint{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT data FROM workflow_checkpoints WHERE run_id = ? AND step_id = ?`, runID, stepID)
	return s.scanCheckpoint(row)
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, runID string) (workflow.Checkpoint, error) {
	if err := s.checkClosed(); err != nil {
		return workflow.Checkpoint{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT data FROM workflow_checkpoints WHERE run_id = ? ORDER BY step_id DESC LIMIT 1`, runID)
	return s.scanCheckpoint(row)
}

func (s *SQLiteStore) LoadByLabel(ctx context.Context, runID, label string) (workflow.Checkpoint, error) {
	if err := s.checkClosed(); err != nil {
		return workflow.Checkpoint{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT data FROM workflow_checkpoints WHERE run_id = ? AND label = ? ORDER BY step_id DESC LIMIT 1`, runID, label)
	return s.scanCheckpoint(row)
}

func (s *SQLiteStore) CheckIdempotency(ctx context.Context, key string) (bool, error) {
	if err := s.checkClosed(); err != nil {
		return false, err
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM idempotency_keys WHERE key_value = ?`, key).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: check idempotency: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, event emit.Event) (string, error) {
	if err := s.checkClosed(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("store: marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO events_outbox (id, run_id, event_data) VALUES (?, ?, ?)`, id, event.RunID, string(data))
	if err != nil {
		return "", fmt.Errorf("store: append event: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_data FROM events_outbox WHERE emitted_at IS NULL ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: pending events: %w", err)
	}
	defer rows.Close()

	var events []emit.Event
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("store: scan pending event: %w", err)
		}
		var ev emit.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("store: unmarshal pending event: %w", err)
		}
		if ev.Meta == nil {
			ev.Meta = make(map[string]interface{})
		}
		ev.Meta["event_id"] = id
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE events_outbox SET emitted_at = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("store: prepare mark emitted: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, id := range eventIDs {
		if _, err := stmt.ExecContext(ctx, now, id); err != nil {
			return fmt.Errorf("store: mark event %q emitted: %w", id, err)
		}
	}
	return tx.Commit()
}

var _ workflow.CheckpointStorage = (*SQLiteStore)(nil)
