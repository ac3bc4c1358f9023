package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// RecordedIO captures one non-deterministic side effect (an API call, a
// database read) performed by an executor via WorkflowContext.Recordable,
// so a later run with WithReplayMode can reproduce the same outcome
// without re-invoking it. Grounded on the teacher's graph/replay.go
// RecordedIO, generalized from per-node replay to per-executor.
type RecordedIO struct {
	ExecutorID string          `json:"executor_id"`
	Attempt    int             `json:"attempt"`
	Request    json.RawMessage `json:"request"`
	Response   json.RawMessage `json:"response"`
	Hash       string          `json:"hash"`
	Timestamp  time.Time       `json:"timestamp"`
}

func recordedIOKey(executorID string, attempt int) string {
	return fmt.Sprintf("%s#%d", executorID, attempt)
}

// newRecordedIO serializes request and response and computes the
// response's content hash used for replay mismatch detection.
func newRecordedIO(executorID string, attempt int, request, response any) (RecordedIO, error) {
	reqJSON, err := json.Marshal(request)
	if err != nil {
		return RecordedIO{}, fmt.Errorf("marshal request: %w", err)
	}
	respJSON, err := json.Marshal(response)
	if err != nil {
		return RecordedIO{}, fmt.Errorf("marshal response: %w", err)
	}
	sum := sha256.Sum256(respJSON)
	return RecordedIO{
		ExecutorID: executorID,
		Attempt:    attempt,
		Request:    reqJSON,
		Response:   respJSON,
		Hash:       "sha256:" + hex.EncodeToString(sum[:]),
		Timestamp:  time.Now(),
	}, nil
}
