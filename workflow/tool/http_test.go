package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTool_GETReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	h := NewHTTPTool()
	out, err := h.Call(context.Background(), map[string]interface{}{"url": srv.URL})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out["status_code"].(int) != http.StatusOK {
		t.Errorf("expected status 200, got %v", out["status_code"])
	}
	if out["body"].(string) != "pong" {
		t.Errorf("expected body %q, got %q", "pong", out["body"])
	}
}

func TestHTTPTool_POSTSendsBody(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		received = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h := NewHTTPTool()
	out, err := h.Call(context.Background(), map[string]interface{}{
		"url":    srv.URL,
		"method": "post",
		"body":   "hello",
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out["status_code"].(int) != http.StatusCreated {
		t.Errorf("expected status 201, got %v", out["status_code"])
	}
	if received != "hello" {
		t.Errorf("expected server to receive %q, got %q", "hello", received)
	}
}

func TestHTTPTool_MissingURLErrors(t *testing.T) {
	h := NewHTTPTool()
	if _, err := h.Call(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatal("expected an error for a missing url")
	}
}

func TestHTTPTool_UnsupportedMethodErrors(t *testing.T) {
	h := NewHTTPTool()
	_, err := h.Call(context.Background(), map[string]interface{}{
		"url":    "http://example.invalid",
		"method": "DELETE",
	})
	if err == nil {
		t.Fatal("expected an error for an unsupported method")
	}
}

func TestHTTPTool_Name(t *testing.T) {
	if got := NewHTTPTool().Name(); got != "http_request" {
		t.Errorf("expected name %q, got %q", "http_request", got)
	}
}
