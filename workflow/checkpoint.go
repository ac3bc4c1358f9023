package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Checkpoint is a complete, JSON-serializable snapshot of a run: enough to
// resume execution from exactly this point, replay it for determinism
// verification, or persist it across a process restart. It mirrors the
// teacher's Checkpoint[S], generalized from a single reducer-merged state
// value to the spec's SharedState-plus-frontier model.
type Checkpoint struct {
	RunID          string          `json:"run_id"`
	StepID         int             `json:"step_id"`
	State          map[string]any  `json:"state"`
	Frontier       []WorkItem      `json:"frontier"`
	PendingRequests []RequestRecord `json:"pending_requests"`
	RecordedIOs    []RecordedIO    `json:"recorded_ios"`
	IdempotencyKey string          `json:"idempotency_key"`
	WorkflowHash   string          `json:"workflow_hash,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Label          string          `json:"label,omitempty"`
}

// computeIdempotencyKey hashes the run ID, step, frontier contents (sorted
// by OrderKey so ordering doesn't leak into the hash) and serialized state
// into a single SHA-256 digest. Two checkpoints with the same idempotency
// key represent the same logical point in the same run and can be treated
// as duplicates by storage.
func computeIdempotencyKey(runID string, stepID int, frontier []WorkItem, state map[string]any) (string, error) {
	sorted := make([]WorkItem, len(frontier))
	copy(sorted, frontier)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OrderKey < sorted[j].OrderKey })

	h := sha256.New()
	h.Write([]byte(runID))
	var stepBytes [8]byte
	for i := 0; i < 8; i++ {
		stepBytes[i] = byte(stepID >> (8 * (7 - i)))
	}
	h.Write(stepBytes[:])

	for _, item := range sorted {
		h.Write([]byte(item.ExecutorID))
		var orderBytes [8]byte
		for i := 0; i < 8; i++ {
			orderBytes[i] = byte(item.OrderKey >> (8 * (7 - i)))
		}
		h.Write(orderBytes[:])
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("workflow: marshal state for idempotency key: %w", err)
	}
	h.Write(stateJSON)

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
