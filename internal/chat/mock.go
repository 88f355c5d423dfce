package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockEngine is a simple engine implementation for testing and for running
// the gateway without a live pipeline (serve --mock).
type MockEngine struct {
	modelID string
}

// NewMockEngine creates a new mock engine.
func NewMockEngine(modelID string) *MockEngine {
	return &MockEngine{modelID: modelID}
}

func (m *MockEngine) Initialize(ctx context.Context) error {
	return nil
}

func (m *MockEngine) Execute(ctx context.Context, req *Request) (*Response, error) {
	return m.Stream(ctx, req, nil)
}

func (m *MockEngine) Stream(ctx context.Context, req *Request, emit func(chunk string) error) (*Response, error) {
	start := time.Now()

	opts, err := DecodeOptions(req.Metadata)
	if err != nil {
		return nil, err
	}

	output := fmt.Sprintf("Mock response for: %s", req.Prompt())

	if emit != nil {
		// Emit word by word so stream consumers see multiple chunks.
		for _, word := range strings.SplitAfter(output, " ") {
			if err := emit(word); err != nil {
				break
			}
		}
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = "mock-session"
	}

	return &Response{
		RunID:      uuid.New(),
		Output:     output,
		ModelID:    m.modelID,
		SessionID:  sessionID,
		DurationMs: time.Since(start).Milliseconds(),
		Success:    true,
	}, nil
}

func (m *MockEngine) Shutdown(ctx context.Context) error {
	return nil
}

// Ensure both engines satisfy Engine.
var _ Engine = (*MockEngine)(nil)
var _ Engine = (*CopilotEngine)(nil)
