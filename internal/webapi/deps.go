package webapi

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/assistkit/gateway/internal/feedback"
)

// The handler layer consumes its collaborators through narrow interfaces so
// tests can substitute fakes without standing up real backends.

// FeedbackManager creates and updates feedback records.
// Implemented by [feedback.Manager].
type FeedbackManager interface {
	Create(ctx context.Context, req feedback.CreateRequest) error
	Update(ctx context.Context, req feedback.UpdateRequest) error
}

// TraceResolver resolves the shareable trace URL for a run.
// Implemented by [tracing.ShareResolver].
type TraceResolver interface {
	ResolveShareURL(ctx context.Context, runID uuid.UUID) (string, error)
}

// ArtifactStore owns files in the local audio directory.
// Implemented by [audio.Store].
type ArtifactStore interface {
	Persist(name string, r io.Reader) (string, error)
	Remove(path string) error
}

// AudioTranscriber converts an audio file on disk to text.
// Implemented by [audio.Transcriber].
type AudioTranscriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// SpeechSynthesizer converts text to a persisted audio artifact and returns
// its path. Implemented by [audio.Synthesizer].
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, conversationID string) (string, error)
}
