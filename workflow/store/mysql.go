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
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLStore is a CheckpointStorage backed by MySQL/MariaDB, for
// distributed deployments where several processes share one workflow's
// checkpoints. Grounded on the teacher's graph/store/mysql.go, adapted
// from a generic Store[S] to the non-generic workflow.Checkpoint.
//
// DSN format:
//
//	user:password@tcp(host:3306)/dbname?parseTime=true
type MySQLStore struct {
	db    *sql.DB
	codec *workflow.Codec

	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a connection pool against dsn and prepares the
// schema. registry must have every payload and SharedState type the
// workflow uses registered before any checkpoint is saved or loaded.
func NewMySQLStore(dsn string, registry *workflow.TypeRegistry) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db, codec: workflow.NewCodec(registry)}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			run_id VARCHAR(255) NOT NULL,
			step_id INT NOT NULL,
			data JSON NOT NULL,
			idempotency_key VARCHAR(255) NOT NULL,
			label VARCHAR(255) DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step_id),
			INDEX idx_label (run_id, label)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key_value VARCHAR(255) NOT NULL PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			event_data JSON NOT NULL,
			emitted_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_pending (emitted_at, created_at),
			INDEX idx_run_id (run_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store: closed")
	}
	return nil
}

func (s *MySQLStore) SaveCheckpoint(ctx context.Context, cp workflow.Checkpoint) error {
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
		ON DUPLICATE KEY UPDATE
			data = VALUES(data), idempotency_key = VALUES(idempotency_key), label = VALUES(label)
	`, cp.RunID, cp.StepID, data, cp.IdempotencyKey, cp.Label)
	if err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO idempotency_keys (key_value) VALUES (?)`, cp.IdempotencyKey); err != nil {
		return fmt.Errorf("store: record idempotency key: %w", err)
	}
	return tx.Commit()
}

func (s *MySQLStore) scanCheckpoint(row *sql.Row) (workflow.Checkpoint, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return workflow.Checkpoint{}, workflow.ErrCheckpointStorageNotFound
		}
		return workflow.Checkpoint{}, fmt.Errorf("store: load checkpoint: %w", err)
	}
	cp, err := s.codec.Decode(data)
	if err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("store: decode checkpoint: %w", err)
	}
	return cp, nil
}

func (s *MySQLStore) LoadCheckpoint(ctx context.Context, runID string, stepID int) (workflow.Checkpoint, error) {
	if err := s.checkClosed(); err != nil {
		return workflow.Checkpoint{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT data FROM workflow_checkpoints WHERE run_id = ? AND step_id = ?`, runID, stepID)
	return s.scanCheckpoint(row)
}

func (s *MySQLStore) LoadLatest(ctx context.Context, runID string) (workflow.Checkpoint, error) {
	if err := s.checkClosed(); err != nil {
		return workflow.Checkpoint{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT data FROM workflow_checkpoints WHERE run_id = ? ORDER BY step_id DESC LIMIT 1`, runID)
	return s.scanCheckpoint(row)
}

func (s *MySQLStore) LoadByLabel(ctx context.Context, runID, label string) (workflow.Checkpoint, error) {
	if err := s.checkClosed(); err != nil {
		return workflow.Checkpoint{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT data FROM workflow_checkpoints WHERE run_id = ? AND label = ? ORDER BY step_id DESC LIMIT 1`, runID, label)
	return s.scanCheckpoint(row)
}

func (s *MySQLStore) CheckIdempotency(ctx context.Context, key string) (bool, error) {
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

func (s *MySQLStore) AppendEvent(ctx context.Context, event emit.Event) (string, error) {
	if err := s.checkClosed(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("store: marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO events_outbox (id, run_id, event_data) VALUES (?, ?, ?)`, id, event.RunID, data)
	if err != nil {
		return "", fmt.Errorf("store: append event: %w", err)
	}
	return id, nil
}

func (s *MySQLStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
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
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("store: scan pending event: %w", err)
		}
		var ev emit.Event
		if err := json.Unmarshal(data, &ev); err != nil {
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

func (s *MySQLStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
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

// IsDuplicateKeyError reports whether err is a MySQL duplicate-key
// error, for callers that want to treat a racing SaveCheckpoint as a
// no-op rather than a hard failure.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return err != nil && asMySQLError(err, &mysqlErr) && mysqlErr.Number == 1062
}

func asMySQLError(err error, target **mysql.MySQLError) bool {
	me, ok := err.(*mysql.MySQLError)
	if ok {
		*target = me
	}
	return ok
}

var _ workflow.CheckpointStorage = (*MySQLStore)(nil)
