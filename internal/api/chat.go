package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sibylhq/sibyl/internal/chat"
	"github.com/sibylhq/sibyl/internal/retrieval"
)

const maxChatBodyBytes = 1 << 20 // 1MB

// Responder produces an assistant reply for a conversation history.
// *chat.Responder satisfies it.
type Responder interface {
	Answer(ctx context.Context, messages []chat.Message) (chat.Message, error)
}

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// ChatResponse is the POST /chat response body. The assistant reply is
// emitted flat so clients read role and content at the top level.
type ChatResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatHandler answers conversations over HTTP.
type chatHandler struct {
	responder       Responder
	maxMessages     int
	maxMessageChars int
	logger          *slog.Logger
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	if msg, ok := h.validate(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}

	reply, err := h.responder.Answer(r.Context(), req.Messages)
	if err != nil {
		h.writeAnswerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Role: reply.Role, Content: reply.Content})
}

// validate checks request shape limits before any model or store work.
func (h *chatHandler) validate(req ChatRequest) (string, bool) {
	if len(req.Messages) == 0 {
		return "messages must not be empty", false
	}
	if len(req.Messages) > h.maxMessages {
		return fmt.Sprintf("too many messages (max %d)", h.maxMessages), false
	}
	for i, m := range req.Messages {
		switch m.Role {
		case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
		default:
			return fmt.Sprintf("messages[%d]: unknown role %q", i, m.Role), false
		}
		if len(m.Content) > h.maxMessageChars {
			return fmt.Sprintf("messages[%d]: content exceeds %d characters", i, h.maxMessageChars), false
		}
	}
	return "", true
}

// writeAnswerError maps responder failures onto HTTP statuses. Client
// mistakes get 400 with a reason; upstream failures get a generic 500 so
// internals never leak.
func (h *chatHandler) writeAnswerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrNoUserMessage), errors.Is(err, retrieval.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "invalid_input", "conversation contains no user question")
	default:
		requestID, _ := requestIDFromContext(r.Context())
		h.logger.Error("answering chat request",
			"error", err,
			"request_id", requestID,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to generate a response")
	}
}
