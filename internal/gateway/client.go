package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coopco/toolbridge/internal/tools"
)

// ToolClient calls the tool endpoints of a remote gateway. It satisfies the
// bridge's Dispatcher interface.
type ToolClient struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy
}

// ClientOption customises a ToolClient.
type ClientOption func(*ToolClient)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(tc *ToolClient) { tc.http = c }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p RetryPolicy) ClientOption {
	return func(tc *ToolClient) { tc.retry = p }
}

func NewToolClient(baseURL string, opts ...ClientOption) *ToolClient {
	c := &ToolClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   NewRetryPolicy(2, 200*time.Millisecond),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Invoke sends req to POST /v1/tools/call and maps error bodies back onto
// tools.ErrUnknownTool, *tools.ValidationError and *tools.HandlerError.
func (c *ToolClient) Invoke(ctx context.Context, req tools.Request) (tools.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return tools.Result{}, fmt.Errorf("failed to marshal tool request: %w", err)
	}

	var res tools.Result
	err = c.retry.Do(ctx, func() error {
		status, data, err := c.do(ctx, http.MethodPost, "/v1/tools/call", body)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return decodeToolError(req.Name, status, data)
		}
		res = tools.Result{}
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("failed to parse tool result: %w", err)
		}
		return nil
	})
	if err != nil {
		return tools.Result{}, err
	}
	if len(res.Content) == 0 {
		return tools.Result{}, &tools.HandlerError{Tool: req.Name, Err: errors.New("remote returned no content")}
	}
	return res, nil
}

// List fetches the remote tool summaries.
func (c *ToolClient) List(ctx context.Context) ([]tools.Summary, error) {
	var out toolList
	err := c.retry.Do(ctx, func() error {
		status, data, err := c.do(ctx, http.MethodGet, "/v1/tools", nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return statusError(status, data)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return out.Tools, nil
}

func (c *ToolClient) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, err
		}
		return 0, nil, transientError{fmt.Errorf("request %s: %w", path, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, transientError{fmt.Errorf("failed to read response: %w", err)}
	}
	return resp.StatusCode, data, nil
}

func decodeToolError(name string, status int, data []byte) error {
	var body toolErrorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Type == "" {
		return statusError(status, data)
	}
	e := body.Error
	switch e.Type {
	case errTypeUnknownTool:
		return fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
	case errTypeValidation:
		return &tools.ValidationError{Tool: e.Tool, Field: e.Field, Reason: e.Reason}
	case errTypeHandler:
		return &tools.HandlerError{Tool: name, Err: errors.New(e.Message)}
	}
	return statusError(status, data)
}

func statusError(status int, data []byte) error {
	err := fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(data)))
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return transientError{err}
	}
	return err
}
