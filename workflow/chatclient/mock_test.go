package chatclient

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_ReturnsConfiguredResponses(t *testing.T) {
	mock := &MockClient{
		Responses: []ChatOut{
			{Text: "first"},
			{Text: "second"},
		},
	}

	out, err := mock.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "first" {
		t.Errorf("expected %q, got %q", "first", out.Text)
	}

	out, err = mock.Chat(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "second" {
		t.Errorf("expected %q, got %q", "second", out.Text)
	}

	// Responses are exhausted: the last response repeats.
	out, _ = mock.Chat(context.Background(), nil, nil)
	if out.Text != "second" {
		t.Errorf("expected repeated last response %q, got %q", "second", out.Text)
	}

	if mock.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", mock.CallCount())
	}
}

func TestMockClient_ReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("boom")
	mock := &MockClient{Err: wantErr}

	_, err := mock.Chat(context.Background(), nil, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected call to be recorded even on error, got %d calls", mock.CallCount())
	}
}

func TestMockClient_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &MockClient{Responses: []ChatOut{{Text: "unreached"}}}
	_, err := mock.Chat(ctx, nil, nil)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected no call recorded on canceled context, got %d", mock.CallCount())
	}
}

func TestMockClient_Reset(t *testing.T) {
	mock := &MockClient{Responses: []ChatOut{{Text: "a"}, {Text: "b"}}}
	_, _ = mock.Chat(context.Background(), nil, nil)
	_, _ = mock.Chat(context.Background(), nil, nil)

	mock.Reset()
	if mock.CallCount() != 0 {
		t.Fatalf("expected 0 calls after reset, got %d", mock.CallCount())
	}

	out, _ := mock.Chat(context.Background(), nil, nil)
	if out.Text != "a" {
		t.Errorf("expected response sequence to restart at %q, got %q", "a", out.Text)
	}
}
