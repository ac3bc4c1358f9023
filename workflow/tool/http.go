package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPTool lets an agent issue an outbound HTTP request. Its input shape is
// fixed on purpose: {"url", "method", "body", "headers"} rather than a
// generic passthrough, so an LLM's tool call stays auditable.
type HTTPTool struct {
	client *http.Client
}

// NewHTTPTool returns an HTTPTool using http.DefaultClient's timeout
// semantics are left to the caller via ctx; construct a *http.Client with
// its own Timeout if a hard deadline independent of ctx is needed.
func NewHTTPTool() *HTTPTool {
	return &HTTPTool{client: &http.Client{}}
}

// NewHTTPToolWithClient lets callers supply a client, e.g. one with a
// transport that records calls for tests or enforces an egress allowlist.
func NewHTTPToolWithClient(client *http.Client) *HTTPTool {
	return &HTTPTool{client: client}
}

func (h *HTTPTool) Name() string { return "http_request" }

func (h *HTTPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	rawURL, _ := input["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("tool: http_request requires a non-empty \"url\"")
	}

	method, _ := input["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("tool: http_request supports GET and POST, got %q", method)
	}

	var bodyReader io.Reader
	if body, ok := input["body"].(string); ok && body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("tool: build request: %w", err)
	}
	if headers, ok := input["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool: execute request: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("tool: read response body: %w", err)
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        buf.String(),
	}, nil
}

var _ Tool = (*HTTPTool)(nil)
