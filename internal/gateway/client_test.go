package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopco/toolbridge/internal/bridge"
	"github.com/coopco/toolbridge/internal/tools"
)

func TestToolClientInvoke(t *testing.T) {
	srv := newTestServer(t)
	client := NewToolClient(srv.URL, WithRetry(NewRetryPolicy(0, time.Millisecond)))
	ctx := context.Background()

	res, err := client.Invoke(ctx, tools.Request{Name: "check_status", Arguments: map[string]any{"service": "api"}})
	require.NoError(t, err)
	assert.Equal(t, "api: operational", res.Text())

	_, err = client.Invoke(ctx, tools.Request{Name: "nope"})
	assert.ErrorIs(t, err, tools.ErrUnknownTool)

	_, err = client.Invoke(ctx, tools.Request{Name: "search_docs", Arguments: map[string]any{"limit": 50, "query": "x"}})
	var verr *tools.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "limit", verr.Field)
	assert.Equal(t, "search_docs", verr.Tool)

	_, err = client.Invoke(ctx, tools.Request{Name: "explode"})
	var herr *tools.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "explode", herr.Tool)
	assert.Contains(t, herr.Err.Error(), "kaboom")
}

func TestToolClientList(t *testing.T) {
	srv := newTestServer(t)
	client := NewToolClient(srv.URL + "/")

	list, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "check_status", list[0].Name)
}

func TestToolClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, tools.TextResult("ok"))
	}))
	defer srv.Close()

	client := NewToolClient(srv.URL, WithRetry(NewRetryPolicy(2, time.Millisecond)))
	res, err := client.Invoke(context.Background(), tools.Request{Name: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text())
	assert.Equal(t, int32(3), calls.Load())
}

func TestToolClientDoesNotRetryHandlerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, toolErrorBody{Error: toolError{Type: errTypeHandler, Message: "boom"}})
	}))
	defer srv.Close()

	client := NewToolClient(srv.URL, WithRetry(NewRetryPolicy(3, time.Millisecond)))
	_, err := client.Invoke(context.Background(), tools.Request{Name: "x"})
	var herr *tools.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestToolClientEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tools.Result{})
	}))
	defer srv.Close()

	_, err := NewToolClient(srv.URL).Invoke(context.Background(), tools.Request{Name: "x"})
	var herr *tools.HandlerError
	assert.ErrorAs(t, err, &herr)
}

func TestToolClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewToolClient(url, WithRetry(NewRetryPolicy(1, time.Millisecond)))
	_, err := client.Invoke(context.Background(), tools.Request{Name: "x"})
	require.Error(t, err)
}

// A bridge backed by an unreachable remote still answers.
func TestBridgeOverUnreachableRemote(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := bridge.New(bridge.Config{
		Dispatcher: NewToolClient(url, WithRetry(NewRetryPolicy(0, time.Millisecond))),
		Logger:     quietLogger(),
	})
	reply := b.Reply(context.Background(), []bridge.Message{{Role: bridge.RoleUser, Content: "status please"}})
	assert.Equal(t, bridge.FinishStop, reply.FinishReason)
	assert.Empty(t, reply.ToolUsed)
	assert.Contains(t, reply.Content, "check_status")
}

func TestRetryPolicyStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewRetryPolicy(5, time.Hour)

	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		cancel()
		return transientError{errors.New("flaky")}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return transientError{errors.New("flaky")}
	})
	require.Error(t, err)
	assert.Equal(t, "flaky", err.Error())
	assert.Equal(t, 3, calls)
}
