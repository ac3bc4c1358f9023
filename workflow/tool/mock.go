package tool

import (
	"context"
	"sync"
)

// MockToolCall records one Call invocation against a MockTool.
type MockToolCall struct {
	Input map[string]interface{}
}

// MockTool is a scripted Tool for tests: it returns Responses in order,
// repeating the last one once exhausted, or Err if set.
type MockTool struct {
	ToolName  string
	Responses []map[string]interface{}
	Err       error

	mu        sync.Mutex
	Calls     []MockToolCall
	callIndex int
}

func (m *MockTool) Name() string { return m.ToolName }

func (m *MockTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockToolCall{Input: input})

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return map[string]interface{}{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears recorded calls and rewinds the response cursor.
func (m *MockTool) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns how many times Call has been invoked.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var _ Tool = (*MockTool)(nil)
