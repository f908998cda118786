package agent

import (
	"context"
	"fmt"
	"sync"
)

// RespondFunc maps an incoming user message (and its zero-based index in
// the session) to the agent's reply.
type RespondFunc func(turn int, text string) (*Response, error)

// ScriptedClient is an in-memory agent used by tests. Replies come from a
// fixed script or a RespondFunc.
type ScriptedClient struct {
	mu       sync.Mutex
	respond  RespondFunc
	sessions int
	// Messages records every user message sent, across all sessions.
	Messages []string
}

// NewScriptedClient builds a client that replies with the given texts in
// order, then keeps repeating the final one.
func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{
		respond: func(turn int, _ string) (*Response, error) {
			if len(replies) == 0 {
				return &Response{Text: ""}, nil
			}
			if turn >= len(replies) {
				turn = len(replies) - 1
			}
			return &Response{Text: replies[turn], ResponseTimeMs: 5}, nil
		},
	}
}

// NewRespondingClient builds a client backed by fn.
func NewRespondingClient(fn RespondFunc) *ScriptedClient {
	return &ScriptedClient{respond: fn}
}

// Sessions returns how many sessions were opened.
func (c *ScriptedClient) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

func (c *ScriptedClient) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.sessions++
	c.mu.Unlock()
	return &scriptedSession{client: c}, nil
}

type scriptedSession struct {
	client *ScriptedClient
	turn   int
	closed bool
}

func (s *scriptedSession) SendMessage(ctx context.Context, text string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, fmt.Errorf("agent: session closed")
	}

	s.client.mu.Lock()
	s.client.Messages = append(s.client.Messages, text)
	s.client.mu.Unlock()

	resp, err := s.client.respond(s.turn, text)
	s.turn++
	return resp, err
}

func (s *scriptedSession) Close(context.Context) error {
	s.closed = true
	return nil
}
