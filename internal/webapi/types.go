package webapi

import (
	"encoding/json"

	"github.com/assistkit/gateway/internal/models"
)

// Envelope is the structured result body used for validation failures and
// feedback acknowledgements.
type Envelope struct {
	Result string `json:"result"`
	Code   int    `json:"code"`
}

// SendFeedbackBody is the request body for POST /feedback.
type SendFeedbackBody struct {
	RunID      string        `json:"run_id"`
	Key        string        `json:"key"`
	Score      *models.Score `json:"score"`
	Comment    string        `json:"comment"`
	FeedbackID string        `json:"feedback_id"`
}

// UpdateFeedbackBody is the request body for PATCH /feedback.
type UpdateFeedbackBody struct {
	FeedbackID string        `json:"feedback_id"`
	Score      *models.Score `json:"score"`
	Comment    string        `json:"comment"`
}

// GetTraceBody is the request body for POST /get_trace.
type GetTraceBody struct {
	RunID string `json:"run_id"`
}

// TranscriptResponse is the response for POST /transcribe_audio.
type TranscriptResponse struct {
	Transcript     string `json:"transcript"`
	ConversationID string `json:"conversationId"`
}

// TextToSpeechBody is the request body for POST /text_to_speech.
type TextToSpeechBody struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// ChatBody is the request body for the chat endpoints. Input is forwarded
// to the pipeline untouched; Config carries the caller's metadata map.
type ChatBody struct {
	Input  json.RawMessage `json:"input"`
	Config ChatConfig      `json:"config"`
}

// ChatConfig is the free-form per-turn configuration.
type ChatConfig struct {
	Metadata map[string]any `json:"metadata"`
}

// ChatInvokeResponse is the buffered response for POST /chat/invoke.
type ChatInvokeResponse struct {
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
