package chatclient

import (
	"context"
	"sync"
)

// MockClient is a test ChatClient: it replays a configured sequence of
// responses (repeating the last one once exhausted) and records every
// call it receives, grounded on the teacher's graph/model.MockChatModel.
type MockClient struct {
	Responses []ChatOut
	Err       error
	Calls     []MockCall

	mu        sync.Mutex
	callIndex int
}

// MockCall records one invocation of Chat.
type MockCall struct {
	Messages []Message
	Tools    []ToolSpec
}

func (m *MockClient) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Messages: messages, Tools: tools})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears call history and rewinds to the first response.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns how many times Chat has been called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
