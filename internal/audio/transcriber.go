package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Transcriber converts a stored audio file into text via the speech
// provider. One synchronous call per file; provider errors propagate to the
// caller unrecovered.
type Transcriber struct {
	client speechClient
	logger *slog.Logger
}

// NewTranscriber creates a Transcriber backed by the OpenAI provider.
func NewTranscriber(cfg ProviderConfig) *Transcriber {
	return &Transcriber{client: newOpenAIClient(cfg), logger: slog.Default()}
}

// Transcribe sends the file at path to the provider and returns the
// transcript text.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening audio file %q: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	start := time.Now()
	text, err := t.client.transcribe(ctx, f)
	if err != nil {
		return "", fmt.Errorf("transcribing %q: %w", path, err)
	}
	t.logger.Debug("transcription complete", "path", path, "duration", time.Since(start))
	return text, nil
}
