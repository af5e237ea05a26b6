// Package chat turns retrieved context and a message history into an
// assistant reply via the configured language model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Message roles on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// fallbackResponse is returned when the model produces an empty response.
const fallbackResponse = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// Sentinel errors for chat operations.
var (
	// ErrNoUserMessage indicates the history contains no user message to
	// answer.
	ErrNoUserMessage = errors.New("no user message in history")

	// ErrModelUnavailable indicates the completion call failed.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Retriever produces the context block for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Responder answers a chat history with retrieved context.
//
// Responder is stateless and safe for concurrent use.
type Responder struct {
	g         *genkit.Genkit
	retriever Retriever
	modelName string
	logger    *slog.Logger
}

// NewResponder creates a Responder.
func NewResponder(g *genkit.Genkit, retriever Retriever, modelName string, logger *slog.Logger) (*Responder, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{g: g, retriever: retriever, modelName: modelName, logger: logger}, nil
}

// Answer retrieves context for the last user message and generates an
// assistant reply over the full history. Retrieval errors propagate
// unwrapped so callers can map them onto their own error surface.
func (r *Responder) Answer(ctx context.Context, messages []Message) (Message, error) {
	query, err := lastUserMessage(messages)
	if err != nil {
		return Message{}, err
	}

	contextBlock, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		return Message{}, fmt.Errorf("retrieving context: %w", err)
	}

	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.modelName),
		ai.WithSystem(BuildSystemPrompt(contextBlock)),
		ai.WithMessages(toModelMessages(messages)...),
	)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		r.logger.Warn("model returned empty response", "model", r.modelName)
		text = fallbackResponse
	}

	r.logger.Debug("generated response",
		"model", r.modelName, "context_chars", len(contextBlock), "response_chars", len(text))
	return Message{Role: RoleAssistant, Content: text}, nil
}

// lastUserMessage returns the content of the most recent non-empty user turn.
func lastUserMessage(messages []Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content, nil
		}
	}
	return "", ErrNoUserMessage
}

// toModelMessages converts wire messages to model messages. Non-assistant
// turns map to the user role; the single system prompt built in Answer
// stays authoritative.
func toModelMessages(messages []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		role := ai.RoleUser
		if m.Role == RoleAssistant {
			role = ai.RoleModel
		}
		out = append(out, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		})
	}
	return out
}
