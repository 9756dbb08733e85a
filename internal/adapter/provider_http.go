package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// maxResponseBytes caps how much of a tool response is read into memory.
const maxResponseBytes = 2 << 20

// HTTPProvider invokes a remote tool endpoint with JSON requests. The
// endpoint receives {"operation": ..., "params": ...} and replies with a
// JSON body that is decoded as the result.
type HTTPProvider struct {
	tool     string
	endpoint string
	client   *http.Client
}

// NewHTTPProvider creates a provider for a tool served at endpoint. The
// client timeout is left to the adapter's per-attempt deadline.
func NewHTTPProvider(tool, endpoint string) (*HTTPProvider, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return &HTTPProvider{tool: tool, endpoint: u.String(), client: &http.Client{}}, nil
}

type httpRequest struct {
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params,omitempty"`
}

// Invoke posts the operation to the endpoint and classifies HTTP failures
// into tool error kinds.
func (p *HTTPProvider) Invoke(ctx context.Context, op string, params map[string]any) (any, error) {
	body, err := json.Marshal(httpRequest{Operation: op, Params: params})
	if err != nil {
		return nil, NewToolError(p.tool, KindBadRequest, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewToolError(p.tool, KindBadRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewToolError(p.tool, KindTransient, err)
	}
	defer resp.Body.Close()

	lr := io.LimitedReader{R: resp.Body, N: maxResponseBytes}
	data, err := io.ReadAll(&lr)
	if err != nil {
		return nil, NewToolError(p.tool, KindTransient, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp, data)
	}

	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, NewToolError(p.tool, KindTransient, fmt.Errorf("decode response: %w", err))
	}
	return result, nil
}

// statusError maps HTTP status codes onto the error taxonomy.
func (p *HTTPProvider) statusError(resp *http.Response, body []byte) error {
	err := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		te := NewToolError(p.tool, KindRateLimited, err)
		te.RetryAfter = retryAfter(resp)
		return te
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewToolError(p.tool, KindAuth, err)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return NewToolError(p.tool, KindBadRequest, err)
	default:
		return NewToolError(p.tool, KindTransient, err)
	}
}

// retryAfter parses the Retry-After header, seconds form only.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
