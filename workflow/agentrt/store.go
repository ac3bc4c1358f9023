package agentrt

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
)

// ThreadMessageStore persists a thread's conversation so an LLMAgent can
// resume it across calls. Grounded on oasis's store.go StoreMessage/
// GetMessages(threadID, limit) pattern, narrowed to what an LLMAgent needs.
type ThreadMessageStore interface {
	// StoreMessage appends msg to threadID's history.
	StoreMessage(ctx context.Context, threadID string, msg chatclient.Message) error
	// Messages returns up to limit of the most recent messages for
	// threadID, oldest first. limit <= 0 means no limit.
	Messages(ctx context.Context, threadID string, limit int) ([]chatclient.Message, error)
}

// MemoryThreadStore is an in-process ThreadMessageStore, the agentrt
// analogue of workflow/store.MemoryStore.
type MemoryThreadStore struct {
	mu       sync.RWMutex
	byThread map[string][]chatclient.Message
}

// NewMemoryThreadStore returns an empty MemoryThreadStore.
func NewMemoryThreadStore() *MemoryThreadStore {
	return &MemoryThreadStore{byThread: make(map[string][]chatclient.Message)}
}

func (m *MemoryThreadStore) StoreMessage(ctx context.Context, threadID string, msg chatclient.Message) error {
	if threadID == "" {
		return fmt.Errorf("agentrt: empty thread id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byThread[threadID] = append(m.byThread[threadID], msg)
	return nil
}

func (m *MemoryThreadStore) Messages(ctx context.Context, threadID string, limit int) ([]chatclient.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.byThread[threadID]
	if limit <= 0 || limit >= len(all) {
		out := make([]chatclient.Message, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]chatclient.Message, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

var _ ThreadMessageStore = (*MemoryThreadStore)(nil)
