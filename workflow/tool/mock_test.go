package tool

import (
	"context"
	"errors"
	"testing"
)

func TestMockTool_CyclesThroughResponsesThenRepeatsLast(t *testing.T) {
	m := &MockTool{
		ToolName: "weather",
		Responses: []map[string]interface{}{
			{"temp": 60},
			{"temp": 65},
		},
	}

	first, err := m.Call(context.Background(), map[string]interface{}{"city": "nyc"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if first["temp"] != 60 {
		t.Errorf("expected first response temp 60, got %v", first["temp"])
	}

	second, _ := m.Call(context.Background(), nil)
	if second["temp"] != 65 {
		t.Errorf("expected second response temp 65, got %v", second["temp"])
	}

	third, _ := m.Call(context.Background(), nil)
	if third["temp"] != 65 {
		t.Errorf("expected repeated last response temp 65, got %v", third["temp"])
	}

	if m.CallCount() != 3 {
		t.Errorf("expected 3 recorded calls, got %d", m.CallCount())
	}
}

func TestMockTool_ReturnsConfiguredError(t *testing.T) {
	boom := errors.New("boom")
	m := &MockTool{ToolName: "broken", Err: boom}

	_, err := m.Call(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected configured error, got %v", err)
	}
	if m.CallCount() != 1 {
		t.Errorf("expected the failed call to still be recorded, got %d", m.CallCount())
	}
}

func TestMockTool_Reset(t *testing.T) {
	m := &MockTool{ToolName: "echo", Responses: []map[string]interface{}{{"ok": true}}}
	m.Call(context.Background(), map[string]interface{}{"a": 1})
	m.Call(context.Background(), map[string]interface{}{"a": 2})

	m.Reset()

	if m.CallCount() != 0 {
		t.Fatalf("expected call count 0 after reset, got %d", m.CallCount())
	}
	out, _ := m.Call(context.Background(), nil)
	if out["ok"] != true {
		t.Errorf("expected response cursor to rewind after reset")
	}
}

func TestMockTool_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &MockTool{ToolName: "echo"}
	if _, err := m.Call(ctx, nil); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
