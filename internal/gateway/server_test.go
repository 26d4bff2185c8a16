package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopco/toolbridge/internal/bridge"
	"github.com/coopco/toolbridge/internal/tools"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.NewStatusTool(tools.NewStaticStatus(), 0)))
	require.NoError(t, reg.Register(tools.NewDocSearchTool(tools.NewMemoryDocs(), 0)))
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "explode",
		Description: "always fails",
		Handler: func(context.Context, tools.Args) (tools.Result, error) {
			return tools.Result{}, errors.New("kaboom")
		},
	}))
	return reg
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := newTestRegistry(t)
	b := bridge.New(bridge.Config{Dispatcher: reg, Logger: quietLogger()})
	srv := httptest.NewServer(New(b, reg, Options{Logger: quietLogger()}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newOpenAIClient(srv *httptest.Server) *openai.Client {
	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestChatCompletionsStatus(t *testing.T) {
	srv := newTestServer(t)
	client := newOpenAIClient(srv)

	resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model: "gpt-test",
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "what is the system status?"},
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "gpt-test", resp.Model)
	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]
	assert.Equal(t, openai.ChatMessageRoleAssistant, choice.Message.Role)
	assert.Equal(t, openai.FinishReasonStop, choice.FinishReason)
	assert.Contains(t, choice.Message.Content, "web: operational")
	assert.Contains(t, choice.Message.Content, "api: operational")
	assert.Equal(t, "check_status", resp.Header().Get(headerToolUsed))
}

func TestChatCompletionsEcho(t *testing.T) {
	srv := newTestServer(t)
	client := newOpenAIClient(srv)

	resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "You said: hello", resp.Choices[0].Message.Content)
	assert.Equal(t, "toolbridge", resp.Model)
	assert.Empty(t, resp.Header().Get(headerToolUsed))
}

func TestChatCompletionsBadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"invalid json", `{"messages":`, "invalid JSON body"},
		{"unsupported role", `{"messages":[{"role":"tool","content":"x"}]}`, `unsupported role "tool"`},
		{"streaming", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`, "streaming is not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body openai.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.NotNil(t, body.Error)
			assert.Equal(t, "invalid_request_error", body.Error.Type)
			assert.Contains(t, body.Error.Message, tt.wantMsg)
		})
	}
}

func TestChatCompletionsMultiContent(t *testing.T) {
	msgs := []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: "check"},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: "http://x"}},
			{Type: openai.ChatMessagePartTypeText, Text: "status"},
		},
	}}
	conv, err := toConversation(msgs)
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "check\nstatus", conv[0].Content)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get(headerRequestID), 26)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set(headerRequestID, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(headerRequestID))
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/chat/completions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Tools, 3)
	assert.Equal(t, "check_status", body.Tools[0].Name)
	assert.Equal(t, "search_docs", body.Tools[1].Name)
	assert.Equal(t, "object", body.Tools[0].InputSchema["type"])
}

func TestCallTool(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantType   string
		wantField  string
	}{
		{"ok", `{"name":"check_status","arguments":{"service":"web"}}`, http.StatusOK, "", ""},
		{"bad json", `{"name":`, http.StatusBadRequest, errTypeInvalidRequest, ""},
		{"missing name", `{"arguments":{}}`, http.StatusBadRequest, errTypeInvalidRequest, ""},
		{"unknown tool", `{"name":"nope"}`, http.StatusNotFound, errTypeUnknownTool, ""},
		{"validation", `{"name":"search_docs","arguments":{"limit":3}}`, http.StatusUnprocessableEntity, errTypeValidation, "query"},
		{"handler", `{"name":"explode"}`, http.StatusInternalServerError, errTypeHandler, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/tools/call", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusOK {
				var res tools.Result
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
				assert.Equal(t, "web: operational", res.Text())
				return
			}
			var body toolErrorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error.Type)
			assert.Equal(t, tt.wantField, body.Error.Field)
		})
	}
}

type brokenWriter struct{ *httptest.ResponseRecorder }

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestResponseWriteFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	reg := newTestRegistry(t)
	b := bridge.New(bridge.Config{Dispatcher: reg, Logger: quietLogger()})
	h := New(b, reg, Options{Logger: logger}).Handler()

	w := brokenWriter{httptest.NewRecorder()}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "write response")
	assert.Contains(t, logs.String(), "connection reset")
}
