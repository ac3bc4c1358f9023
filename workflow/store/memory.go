package store

import (
	"context"
	"sort"
	"sync"

	"github.com/agentflow-go/agentflow/workflow"
	"github.com/agentflow-go/agentflow/workflow/emit"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory CheckpointStorage, for tests and
// single-process workflows where persistence across restarts isn't
// required. Grounded on the teacher's graph/store/memory.go, adapted
// from generic per-state storage to workflow.Checkpoint.
type MemoryStore struct {
	mu sync.RWMutex

	checkpoints map[string]map[int]workflow.Checkpoint // runID -> stepID -> checkpoint
	labelIndex  map[string]map[string]int              // runID -> label -> stepID
	idempotency map[string]bool

	pendingEvents []storedEvent
}

type storedEvent struct {
	id      string
	event   emit.Event
	emitted bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string]map[int]workflow.Checkpoint),
		labelIndex:  make(map[string]map[string]int),
		idempotency: make(map[string]bool),
	}
}

func (m *MemoryStore) SaveCheckpoint(_ context.Context, cp workflow.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.checkpoints[cp.RunID]; !ok {
		m.checkpoints[cp.RunID] = make(map[int]workflow.Checkpoint)
	}
	m.checkpoints[cp.RunID][cp.StepID] = cp
	m.idempotency[cp.IdempotencyKey] = true

	if cp.Label != "" {
		if _, ok := m.labelIndex[cp.RunID]; !ok {
			m.labelIndex[cp.RunID] = make(map[string]int)
		}
		m.labelIndex[cp.RunID][cp.Label] = cp.StepID
	}
	return nil
}

func (m *MemoryStore) LoadCheckpoint(_ context.Context, runID string, stepID int) (workflow.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byStep, ok := m.checkpoints[runID]
	if !ok {
		return workflow.Checkpoint{}, workflow.ErrCheckpointStorageNotFound
	}
	cp, ok := byStep[stepID]
	if !ok {
		return workflow.Checkpoint{}, workflow.ErrCheckpointStorageNotFound
	}
	return cp, nil
}

func (m *MemoryStore) LoadLatest(_ context.Context, runID string) (workflow.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byStep, ok := m.checkpoints[runID]
	if !ok || len(byStep) == 0 {
		return workflow.Checkpoint{}, workflow.ErrCheckpointStorageNotFound
	}
	steps := make([]int, 0, len(byStep))
	for step := range byStep {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return byStep[steps[len(steps)-1]], nil
}

func (m *MemoryStore) LoadByLabel(_ context.Context, runID, label string) (workflow.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	labels, ok := m.labelIndex[runID]
	if !ok {
		return workflow.Checkpoint{}, workflow.ErrCheckpointStorageNotFound
	}
	step, ok := labels[label]
	if !ok {
		return workflow.Checkpoint{}, workflow.ErrCheckpointStorageNotFound
	}
	return m.checkpoints[runID][step], nil
}

func (m *MemoryStore) CheckIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[key], nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, event emit.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.pendingEvents = append(m.pendingEvents, storedEvent{id: id, event: event})
	return id, nil
}

func (m *MemoryStore) PendingEvents(_ context.Context, limit int) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []emit.Event
	for _, se := range m.pendingEvents {
		if se.emitted {
			continue
		}
		ev := se.event
		if ev.Meta == nil {
			ev.Meta = make(map[string]interface{})
		}
		ev.Meta["event_id"] = se.id
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkEventsEmitted(_ context.Context, eventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		ids[id] = true
	}
	for i := range m.pendingEvents {
		if ids[m.pendingEvents[i].id] {
			m.pendingEvents[i].emitted = true
		}
	}
	return nil
}

var _ workflow.CheckpointStorage = (*MemoryStore)(nil)
