package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Synthesizer renders text into a speech artifact on disk. The artifact is
// named {conversationId}.mp3 so later turns for the same conversation
// overwrite it.
type Synthesizer struct {
	client speechClient
	store  *Store
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer backed by the OpenAI provider,
// persisting artifacts through store.
func NewSynthesizer(cfg ProviderConfig, store *Store) *Synthesizer {
	return &Synthesizer{client: newOpenAIClient(cfg), store: store, logger: slog.Default()}
}

// Synthesize invokes the provider once and writes the resulting audio to
// the store. Returns the artifact path.
func (s *Synthesizer) Synthesize(ctx context.Context, text, conversationID string) (string, error) {
	start := time.Now()
	body, err := s.client.synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("synthesizing speech: %w", err)
	}
	defer body.Close() //nolint:errcheck

	path, err := s.store.Persist(conversationID+".mp3", body)
	if err != nil {
		return "", err
	}
	s.logger.Debug("synthesis complete",
		"conversation_id", conversationID, "path", path, "duration", time.Since(start))
	return path, nil
}
