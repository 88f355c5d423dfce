// Package chat fronts the answer-generation pipeline. The gateway treats
// the pipeline as a black box: an opaque input payload plus a free-form
// metadata map go in, a streamed or buffered answer comes out, and every
// execution is identifiable by a run id for later trace and feedback
// lookup.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

// Engine is the interface to the answer pipeline.
type Engine interface {
	// Initialize sets up the engine
	Initialize(ctx context.Context) error

	// Execute runs one chat turn and returns the buffered answer.
	Execute(ctx context.Context, req *Request) (*Response, error)

	// Stream runs one chat turn, calling emit for each output chunk as it
	// arrives, and returns the final response. An error from emit stops
	// further emission but not the turn.
	Stream(ctx context.Context, req *Request, emit func(chunk string) error) (*Response, error)

	// Shutdown cleans up resources
	Shutdown(ctx context.Context) error
}

// Request is one chat turn forwarded to the pipeline.
type Request struct {
	// Input is the opaque turn payload. The gateway does not interpret it
	// beyond extracting a prompt string for the pipeline.
	Input json.RawMessage

	// Metadata is the free-form configuration map supplied by the caller.
	Metadata map[string]any
}

// Options are the metadata keys the engine understands. Unknown keys are
// ignored, keeping the metadata map pass-through for callers that attach
// their own bookkeeping.
type Options struct {
	Model          string `mapstructure:"model"`
	SessionID      string `mapstructure:"session_id"`
	ConversationID string `mapstructure:"conversation_id"`
}

// DecodeOptions extracts the supported keys from a metadata map.
func DecodeOptions(metadata map[string]any) (Options, error) {
	var opts Options
	if metadata == nil {
		return opts, nil
	}
	if err := mapstructure.Decode(metadata, &opts); err != nil {
		return Options{}, fmt.Errorf("decoding chat metadata: %w", err)
	}
	return opts, nil
}

// Response is the result of one chat turn.
type Response struct {
	// RunID identifies this execution for trace and feedback lookup.
	RunID uuid.UUID

	Output     string
	ModelID    string
	SessionID  string
	DurationMs int64
	ErrorMsg   string
	Success    bool
}

// Prompt extracts the prompt text from the opaque input. A JSON string is
// used directly; an object's "question" or "message" field is preferred;
// anything else is forwarded as raw JSON text.
func (r *Request) Prompt() string {
	var s string
	if err := json.Unmarshal(r.Input, &s); err == nil {
		return s
	}

	var obj struct {
		Question string `json:"question"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(r.Input, &obj); err == nil {
		if obj.Question != "" {
			return obj.Question
		}
		if obj.Message != "" {
			return obj.Message
		}
	}
	return string(r.Input)
}
