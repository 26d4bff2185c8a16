package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/coopco/toolbridge/internal/bridge"
)

// headerToolUsed carries the name of the tool behind a chat reply.
const headerToolUsed = "X-Tool-Used"

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, apiError("invalid JSON body: "+err.Error()))
		return
	}
	if req.Stream {
		s.respond(w, http.StatusBadRequest, apiError("streaming is not supported"))
		return
	}

	conv, err := toConversation(req.Messages)
	if err != nil {
		s.respond(w, http.StatusBadRequest, apiError(err.Error()))
		return
	}

	reply := s.bridge.Reply(r.Context(), conv)

	model := req.Model
	if model == "" {
		model = s.opts.Model
	}
	if reply.ToolUsed != "" {
		w.Header().Set(headerToolUsed, reply.ToolUsed)
	}
	s.respond(w, http.StatusOK, openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: reply.Content,
			},
			FinishReason: openai.FinishReason(reply.FinishReason),
		}},
	})
}

// toConversation converts wire messages, flattening multi-part text content.
func toConversation(msgs []openai.ChatCompletionMessage) ([]bridge.Message, error) {
	conv := make([]bridge.Message, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case bridge.RoleUser, bridge.RoleAssistant, bridge.RoleSystem:
		default:
			return nil, fmt.Errorf("messages[%d]: unsupported role %q", i, m.Role)
		}

		content := m.Content
		if content == "" && len(m.MultiContent) > 0 {
			var parts []string
			for _, p := range m.MultiContent {
				if p.Type == openai.ChatMessagePartTypeText {
					parts = append(parts, p.Text)
				}
			}
			content = strings.Join(parts, "\n")
		}
		conv = append(conv, bridge.Message{Role: m.Role, Content: content})
	}
	return conv, nil
}

func apiError(msg string) openai.ErrorResponse {
	return openai.ErrorResponse{Error: &openai.APIError{
		Type:    "invalid_request_error",
		Message: msg,
	}}
}
