package chat

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// FlowName is the registered name of the chat flow in Genkit.
const FlowName = "sibyl/chat"

// Input is the request payload for the chat flow.
type Input struct {
	Messages []Message `json:"messages"`
}

// Output is the response payload from the chat flow.
type Output struct {
	Message Message `json:"message"`
}

// Flow is the type alias for the chat Genkit flow.
type Flow = core.Flow[Input, Output, struct{}]

// Package-level singleton for Flow to prevent panic on re-registration.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, initializing it on first call.
// Subsequent calls return the existing flow (parameters are ignored).
// genkit.DefineFlow panics on re-registration, hence the sync.Once.
func NewFlow(g *genkit.Genkit, responder *Responder) *Flow {
	flowOnce.Do(func() {
		flow = defineFlow(g, responder)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton so tests can initialize
// with different configurations. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

func defineFlow(g *genkit.Genkit, responder *Responder) *Flow {
	return genkit.DefineFlow(g, FlowName,
		func(ctx context.Context, input Input) (Output, error) {
			reply, err := responder.Answer(ctx, input.Messages)
			if err != nil {
				return Output{}, err
			}
			return Output{Message: reply}, nil
		},
	)
}
