package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopco/toolbridge/internal/bridge"
	"github.com/coopco/toolbridge/internal/tools"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(
		tools.NewStatusTool(tools.NewStaticStatus(), 0),
		tools.NewDocSearchTool(tools.NewMemoryDocs(), 0),
		tools.Definition{
			Name:        "explode",
			Description: "always fails",
			Handler: func(context.Context, tools.Args) (tools.Result, error) {
				return tools.Result{}, errors.New("kaboom")
			},
		},
	)
	return reg
}

// connect wires a Client to a Server through two in-memory pipes.
func connect(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()

	srv := NewServer(testRegistry(t), "toolbridge", "test", quietLogger())
	go func() {
		srv.Serve(ctx, clientToServerR, serverToClientW)
		serverToClientW.Close()
	}()

	c, err := NewClient(ctx, "test", serverToClientR, clientToServerW)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		cancel()
	})
	return c
}

func TestClientListTools(t *testing.T) {
	c := connect(t)

	list, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "check_status", list[0].Name)
	assert.Contains(t, list[0].Description, `Examples: {"service":"all"}; {"service":"api"}`)
	assert.Empty(t, list[0].Examples)
	assert.Equal(t, "search_docs", list[1].Name)
	require.NotNil(t, list[1].InputSchema)
	assert.Contains(t, list[1].InputSchema.Required, "query")
}

func TestClientInvoke(t *testing.T) {
	c := connect(t)
	ctx := context.Background()

	res, err := c.Invoke(ctx, tools.Request{Name: "check_status"})
	require.NoError(t, err)
	assert.Equal(t, "web: operational\napi: operational", res.Text())

	_, err = c.Invoke(ctx, tools.Request{Name: "missing"})
	assert.ErrorIs(t, err, tools.ErrUnknownTool)

	_, err = c.Invoke(ctx, tools.Request{Name: "check_status", Arguments: map[string]any{"service": "db"}})
	var verr *tools.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "service", verr.Field)
	assert.Equal(t, "check_status", verr.Tool)

	_, err = c.Invoke(ctx, tools.Request{Name: "explode"})
	var herr *tools.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "kaboom", herr.Err.Error())
}

func TestClientCallToolIsError(t *testing.T) {
	c := connect(t)

	res, isError, err := c.CallTool(context.Background(), tools.Request{Name: "explode"})
	require.NoError(t, err)
	assert.True(t, isError)
	assert.Equal(t, "kaboom", res.Text())
}

func TestBridgeOverMCP(t *testing.T) {
	c := connect(t)
	b := bridge.New(bridge.Config{Dispatcher: c, Logger: quietLogger()})

	reply := b.Reply(context.Background(), []bridge.Message{{Role: bridge.RoleUser, Content: "What's the status?"}})
	assert.Equal(t, "check_status", reply.ToolUsed)
	assert.Contains(t, reply.Content, "web: operational")
	assert.Contains(t, reply.Content, "api: operational")
}

func TestClientClosedConnection(t *testing.T) {
	serverToClientR, serverToClientW := io.Pipe()
	clientToServerR, clientToServerW := io.Pipe()
	go io.Copy(io.Discard, clientToServerR)
	serverToClientW.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewClient(ctx, "dead", serverToClientR, clientToServerW)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed the connection")
}

func TestSpawnRequiresCommand(t *testing.T) {
	_, err := Spawn(context.Background(), "empty", SpawnConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

// rawSession drives a Server with hand-written frames.
type rawSession struct {
	t   *testing.T
	w   *io.PipeWriter
	out *bufio.Scanner
}

func newRawSession(t *testing.T) *rawSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	srv := NewServer(testRegistry(t), "toolbridge", "test", quietLogger())
	go srv.Serve(ctx, inR, outW)
	t.Cleanup(func() {
		cancel()
		inW.Close()
		outR.Close()
	})
	return &rawSession{t: t, w: inW, out: bufio.NewScanner(outR)}
}

func (s *rawSession) send(frame string) map[string]any {
	s.t.Helper()
	_, err := io.WriteString(s.w, frame+"\n")
	require.NoError(s.t, err)
	require.True(s.t, s.out.Scan(), "no response")
	var m map[string]any
	require.NoError(s.t, json.Unmarshal(s.out.Bytes(), &m))
	return m
}

func TestServerFrames(t *testing.T) {
	s := newRawSession(t)

	initResp := s.send(`{"jsonrpc":"2.0","id":"a1","method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"t","version":"1"}}}`)
	assert.Equal(t, "a1", initResp["id"])
	result := initResp["result"].(map[string]any)
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])
	assert.Equal(t, "toolbridge", result["serverInfo"].(map[string]any)["name"])

	// Notifications get no response; the next frame answers the ping.
	_, err := io.WriteString(s.w, `{"jsonrpc":"2.0","method":"notifications/initialized"}`+"\n")
	require.NoError(t, err)
	ping := s.send(`{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	assert.Equal(t, float64(7), ping["id"])
	assert.Equal(t, map[string]any{}, ping["result"])

	// An initialized notification sent with an id still gets a well-formed result.
	ack := s.send(`{"jsonrpc":"2.0","id":"n1","method":"notifications/initialized"}`)
	assert.Equal(t, "n1", ack["id"])
	assert.Contains(t, ack, "result")
	assert.Equal(t, map[string]any{}, ack["result"])

	unknown := s.send(`{"jsonrpc":"2.0","id":8,"method":"resources/list"}`)
	assert.Equal(t, float64(CodeMethodNotFound), unknown["error"].(map[string]any)["code"])

	parse := s.send(`{not json`)
	assert.Nil(t, parse["id"])
	assert.Equal(t, float64(CodeParseError), parse["error"].(map[string]any)["code"])

	invalid := s.send(`{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"search_docs","arguments":{"limit":0,"query":"x"}}}`)
	errObj := invalid["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
	data := errObj["data"].(map[string]any)
	assert.Equal(t, KindValidation, data["kind"])
	assert.Equal(t, "limit", data["field"])

	ok := s.send(`{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"search_docs","arguments":{"query":"status"}}}`)
	content := ok["result"].(map[string]any)["content"].([]any)
	require.Len(t, content, 1)
	assert.Contains(t, content[0].(map[string]any)["text"], "Status checks")
}
