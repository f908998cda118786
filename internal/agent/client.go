// Package agent defines how the engine talks to the conversational agent
// under test. The runner exercises the agent exclusively through this
// interface; the HTTP client is the production implementation and the
// scripted client backs tests.
package agent

import (
	"context"

	"github.com/bookedby/convoqa/internal/models"
)

// Response is one agent reply.
type Response struct {
	Text           string
	ResponseTimeMs int64
	ToolCalls      []models.ToolCall
}

// Session is one conversational session with the agent.
type Session interface {
	// SendMessage sends one user message and waits for the reply.
	SendMessage(ctx context.Context, text string) (*Response, error)
	// Close releases the session.
	Close(ctx context.Context) error
}

// Client opens conversational sessions.
type Client interface {
	NewSession(ctx context.Context) (Session, error)
}
