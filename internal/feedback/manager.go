// Package feedback manages the lifecycle of feedback records attached to
// answer-pipeline runs. All state lives in the tracing backend; the manager
// only shapes requests and guards the update precondition.
package feedback

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/assistkit/gateway/internal/models"
	"github.com/assistkit/gateway/internal/tracing"
)

// DefaultKey is the category label applied when the caller does not name one.
const DefaultKey = "user_score"

// ErrMissingFeedbackID is returned by Update when no feedback id was given.
var ErrMissingFeedbackID = errors.New("no feedback ID provided")

// CreateRequest describes a new feedback record. FeedbackID is normally nil;
// the backend assigns one on creation.
type CreateRequest struct {
	RunID      uuid.UUID
	Key        string
	Score      *models.Score
	Comment    string
	FeedbackID *uuid.UUID
}

// UpdateRequest describes a change to an existing feedback record.
type UpdateRequest struct {
	FeedbackID *uuid.UUID
	Score      *models.Score
	Comment    string
}

// Manager creates and updates feedback records.
type Manager struct {
	client tracing.FeedbackClient
}

// NewManager creates a Manager over the given backend client.
func NewManager(client tracing.FeedbackClient) *Manager {
	return &Manager{client: client}
}

// Create records new feedback for a run. There is no local retry or
// deduplication; the backend is the system of record.
func (m *Manager) Create(ctx context.Context, req CreateRequest) error {
	key := req.Key
	if key == "" {
		key = DefaultKey
	}
	return m.client.CreateFeedback(ctx, tracing.CreateFeedbackRequest{
		RunID:      req.RunID,
		Key:        key,
		Score:      req.Score,
		Comment:    req.Comment,
		FeedbackID: req.FeedbackID,
	})
}

// Update modifies an existing feedback record. The backend is never called
// without a feedback id.
func (m *Manager) Update(ctx context.Context, req UpdateRequest) error {
	if req.FeedbackID == nil {
		return ErrMissingFeedbackID
	}
	return m.client.UpdateFeedback(ctx, *req.FeedbackID, tracing.UpdateFeedbackRequest{
		Score:   req.Score,
		Comment: req.Comment,
	})
}
