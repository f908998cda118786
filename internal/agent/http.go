package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bookedby/convoqa/internal/models"
)

// DefaultTurnTimeout bounds one message round trip.
const DefaultTurnTimeout = 30 * time.Second

// HTTPClient talks to the agent gateway over its session API.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	turnTimeout time.Duration
	logger      *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTurnTimeout overrides the per-turn timeout.
func WithTurnTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.turnTimeout = d
	}
}

// WithHTTPClient swaps the underlying http.Client. Used by tests.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// NewHTTPClient creates a client for the agent gateway at baseURL.
func NewHTTPClient(baseURL string, logger *slog.Logger, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		turnTimeout: DefaultTurnTimeout,
		logger:      logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type sessionCreated struct {
	SessionID string `json:"session_id"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Text      string         `json:"text"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	Name       string         `json:"name"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Status     string         `json:"status"`
	DurationMs int64          `json:"duration_ms"`
}

// NewSession opens a fresh conversation.
func (c *HTTPClient) NewSession(ctx context.Context) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.turnTimeout)
	defer cancel()

	var created sessionCreated
	if err := c.post(ctx, "/v1/sessions", nil, &created); err != nil {
		return nil, fmt.Errorf("agent: create session: %w", err)
	}
	if created.SessionID == "" {
		return nil, fmt.Errorf("agent: create session: empty session id")
	}

	c.logger.Debug("agent session opened", "session_id", created.SessionID)
	return &httpSession{client: c, id: created.SessionID}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type httpSession struct {
	client *HTTPClient
	id     string
}

func (s *httpSession) SendMessage(ctx context.Context, text string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.client.turnTimeout)
	defer cancel()

	start := time.Now()
	var reply messageResponse
	err := s.client.post(ctx, "/v1/sessions/"+s.id+"/messages", messageRequest{Text: text}, &reply)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("agent: send message: %w", err)
	}

	calls := make([]models.ToolCall, 0, len(reply.ToolCalls))
	for _, tc := range reply.ToolCalls {
		calls = append(calls, models.ToolCall{
			Name:       tc.Name,
			Input:      tc.Input,
			Output:     tc.Output,
			Status:     tc.Status,
			DurationMs: tc.DurationMs,
		})
	}

	return &Response{
		Text:           reply.Text,
		ResponseTimeMs: elapsed,
		ToolCalls:      calls,
	}, nil
}

func (s *httpSession) Close(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.baseURL+"/v1/sessions/"+s.id, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent: close session: %w", err)
	}
	defer resp.Body.Close()
	return nil
}
