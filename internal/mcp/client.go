package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/coopco/toolbridge/internal/tools"
)

// SpawnConfig describes an MCP server process.
type SpawnConfig struct {
	Command     string
	Args        []string
	Env         map[string]string
	ToolTimeout time.Duration // per tools/call, default 30s
}

type response struct {
	result json.RawMessage
	err    *RPCError
}

// Client is a JSON-RPC client for an MCP server. It satisfies the bridge's
// Dispatcher interface.
type Client struct {
	name    string
	w       io.Writer
	closers []io.Closer
	cmd     *exec.Cmd
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	reqID     atomic.Int64
	pending   map[int64]chan response
	pendingMu sync.Mutex

	done      chan struct{} // closed by Close
	eof       chan struct{} // closed when the read side ends
	closeOnce sync.Once
}

// NewClient performs the initialize handshake over r and w. Closing the
// client closes r and w when they implement io.Closer.
func NewClient(ctx context.Context, name string, r io.Reader, w io.Writer) (*Client, error) {
	c := &Client{
		name:    name,
		w:       w,
		timeout: 30 * time.Second,
		logger:  slog.Default().With("server", name),
		pending: make(map[int64]chan response),
		done:    make(chan struct{}),
		eof:     make(chan struct{}),
	}
	for _, v := range []any{w, r} {
		if cl, ok := v.(io.Closer); ok {
			c.closers = append(c.closers, cl)
		}
	}
	go c.readLoop(r)

	if err := c.initialize(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.logger.Info("MCP client connected")
	return c, nil
}

// Spawn starts an MCP server process and connects to its stdio.
func Spawn(ctx context.Context, name string, cfg SpawnConfig) (*Client, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("MCP server %s: command is required", name)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	c, err := NewClient(ctx, name, stdout, stdin)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	c.cmd = cmd
	if cfg.ToolTimeout > 0 {
		c.timeout = cfg.ToolTimeout
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	params, err := json.Marshal(initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      peerInfo{Name: "toolbridge", Version: "0.1.0"},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal init params: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.call(initCtx, "initialize", params); err != nil {
		return fmt.Errorf("failed to initialize MCP server: %w", err)
	}
	if err := c.notify("notifications/initialized"); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}
	return nil
}

// Close stops the client and, for spawned servers, the process.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		for _, cl := range c.closers {
			cl.Close()
		}
		if c.cmd != nil && c.cmd.Process != nil {
			c.cmd.Process.Kill()
			c.cmd.Wait()
		}
	})
	return nil
}

func (c *Client) readLoop(r io.Reader) {
	defer close(c.eof)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		id := gjson.GetBytes(line, "id")
		if id.Type != gjson.Number {
			c.logger.Debug("ignoring MCP message without numeric id", "line", string(line))
			continue
		}

		resp := response{result: json.RawMessage(gjson.GetBytes(line, "result").Raw)}
		if e := gjson.GetBytes(line, "error"); e.Exists() {
			resp.err = &RPCError{
				Code:    int(e.Get("code").Int()),
				Message: e.Get("message").String(),
			}
			if d := e.Get("data"); d.Exists() {
				resp.err.Data = json.RawMessage(d.Raw)
			}
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[id.Int()]
		delete(c.pending, id.Int())
		c.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
	}
	if err := sc.Err(); err != nil {
		c.logger.Warn("MCP read loop error", "err", err)
	}
}

// call sends a request and waits for its response.
func (c *Client) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	id := c.reqID.Add(1)
	data, err := json.Marshal(message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprint(id)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ch := make(chan response, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	if err := c.writeLine(data); err != nil {
		forget()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return nil, resp.err
		}
		return resp.result, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.New("MCP client closed")
	case <-c.eof:
		return nil, errors.New("MCP server closed the connection")
	}
}

func (c *Client) notify(method string) error {
	data, err := json.Marshal(message{JSONRPC: "2.0", Method: method})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return c.writeLine(data)
}

func (c *Client) writeLine(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(append(data, '\n'))
	return err
}

// ListTools returns the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]tools.Summary, error) {
	result, err := c.call(ctx, "tools/list", json.RawMessage("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	var out listResult
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("failed to parse tools list: %w", err)
	}
	return out.Tools, nil
}

// CallTool runs a tool and returns its result along with the server's
// isError flag.
func (c *Client) CallTool(ctx context.Context, req tools.Request) (tools.Result, bool, error) {
	params, err := json.Marshal(req)
	if err != nil {
		return tools.Result{}, false, fmt.Errorf("failed to marshal tool params: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.call(callCtx, "tools/call", params)
	if err != nil {
		return tools.Result{}, false, err
	}

	parsed := gjson.ParseBytes(raw)
	var res tools.Result
	parsed.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == tools.ContentText {
			res.Content = append(res.Content, tools.Content{Type: tools.ContentText, Text: block.Get("text").String()})
		}
		return true
	})
	return res, parsed.Get("isError").Bool(), nil
}

// Invoke adapts CallTool to the dispatcher contract, mapping protocol errors
// back onto the tools package error types.
func (c *Client) Invoke(ctx context.Context, req tools.Request) (tools.Result, error) {
	res, isError, err := c.CallTool(ctx, req)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == CodeInvalidParams {
			if mapped := fromErrorData(req.Name, rpcErr); mapped != nil {
				return tools.Result{}, mapped
			}
		}
		return tools.Result{}, &tools.HandlerError{Tool: req.Name, Err: err}
	}
	if isError {
		return tools.Result{}, &tools.HandlerError{Tool: req.Name, Err: errors.New(res.Text())}
	}
	if len(res.Content) == 0 {
		return tools.Result{}, &tools.HandlerError{Tool: req.Name, Err: errors.New("server returned no content")}
	}
	return res, nil
}

func fromErrorData(name string, e *RPCError) error {
	raw, ok := e.Data.(json.RawMessage)
	if !ok {
		return nil
	}
	data := gjson.ParseBytes(raw)
	switch data.Get("kind").String() {
	case KindUnknownTool:
		return fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
	case KindValidation:
		tool := data.Get("tool").String()
		if tool == "" {
			tool = name
		}
		return &tools.ValidationError{
			Tool:   tool,
			Field:  data.Get("field").String(),
			Reason: strings.TrimSpace(data.Get("reason").String()),
		}
	}
	return nil
}
