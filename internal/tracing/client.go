// Package tracing talks to the tracing backend that records answer-pipeline
// runs. It exposes the narrow slices of the backend the gateway needs:
// reading runs, resolving shareable trace links, and attaching feedback.
package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assistkit/gateway/internal/models"
)

// ErrRunNotFound is returned when the backend has no record of a run yet.
// Freshly finished runs may take a moment to be indexed, so callers treat
// this as a retryable condition.
var ErrRunNotFound = errors.New("run not found")

// ErrNotShared is returned when a run has no shareable link.
var ErrNotShared = errors.New("run is not shared")

// RunClient is the part of the backend used by the ShareResolver.
type RunClient interface {
	// ReadRun returns the backend's record of a run.
	ReadRun(ctx context.Context, runID uuid.UUID) (*models.Run, error)
	// ReadSharedLink returns the existing share URL for a run, or
	// ErrNotShared when no share exists.
	ReadSharedLink(ctx context.Context, runID uuid.UUID) (string, error)
	// ShareRun creates a share for the run and returns its URL. The backend
	// guarantees at most one active share per run.
	ShareRun(ctx context.Context, runID uuid.UUID) (string, error)
}

// FeedbackClient is the part of the backend used by the feedback manager.
type FeedbackClient interface {
	CreateFeedback(ctx context.Context, req CreateFeedbackRequest) error
	UpdateFeedback(ctx context.Context, feedbackID uuid.UUID, req UpdateFeedbackRequest) error
}

// CreateFeedbackRequest is the payload for a new feedback record. FeedbackID
// is only set when the caller pre-assigns one; normally the backend assigns
// it on creation.
type CreateFeedbackRequest struct {
	RunID      uuid.UUID     `json:"run_id"`
	Key        string        `json:"key"`
	Score      *models.Score `json:"score,omitempty"`
	Comment    string        `json:"comment,omitempty"`
	FeedbackID *uuid.UUID    `json:"id,omitempty"`
}

// UpdateFeedbackRequest is the payload for updating an existing record.
type UpdateFeedbackRequest struct {
	Score   *models.Score `json:"score,omitempty"`
	Comment string        `json:"comment,omitempty"`
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Endpoint is the backend base URL.
	Endpoint string
	// APIKey is sent as the x-api-key header when non-empty.
	APIKey string
	// Timeout bounds each backend call. Zero means 30s.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is an HTTP client for the tracing backend.
//
// Wire contract: GET /runs/{id} (404 → not yet indexed),
// GET /runs/{id}/share (404 → not shared, 200 → {"url":...}),
// PUT /runs/{id}/share (create, → {"url":...}),
// POST /feedback, PATCH /feedback/{id}.
type Client struct {
	endpoint string
	apiKey   string
	hc       *http.Client
}

var _ RunClient = (*Client)(nil)
var _ FeedbackClient = (*Client)(nil)

// NewClient creates a Client for the backend at opts.Endpoint.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		apiKey:   opts.APIKey,
		hc:       hc,
	}
}

// ReadRun returns the backend's record of a run.
func (c *Client) ReadRun(ctx context.Context, runID uuid.UUID) (*models.Run, error) {
	var run models.Run
	err := c.do(ctx, http.MethodGet, "/runs/"+runID.String(), nil, &run)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}
	return &run, nil
}

// shareResponse is the body of both share endpoints.
type shareResponse struct {
	URL string `json:"url"`
}

// ReadSharedLink returns the existing share URL for a run.
func (c *Client) ReadSharedLink(ctx context.Context, runID uuid.UUID) (string, error) {
	var resp shareResponse
	err := c.do(ctx, http.MethodGet, "/runs/"+runID.String()+"/share", nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("run %s: %w", runID, ErrNotShared)
		}
		return "", err
	}
	return resp.URL, nil
}

// ShareRun creates a share for the run and returns its URL.
func (c *Client) ShareRun(ctx context.Context, runID uuid.UUID) (string, error) {
	var resp shareResponse
	if err := c.do(ctx, http.MethodPut, "/runs/"+runID.String()+"/share", nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// CreateFeedback records a new feedback entry for a run.
func (c *Client) CreateFeedback(ctx context.Context, req CreateFeedbackRequest) error {
	return c.do(ctx, http.MethodPost, "/feedback", req, nil)
}

// UpdateFeedback modifies an existing feedback entry.
func (c *Client) UpdateFeedback(ctx context.Context, feedbackID uuid.UUID, req UpdateFeedbackRequest) error {
	return c.do(ctx, http.MethodPatch, "/feedback/"+feedbackID.String(), req, nil)
}

// statusError carries a non-2xx backend response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("tracing backend returned status %d", e.status)
	}
	return fmt.Sprintf("tracing backend returned status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("building %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %w", method, path, &statusError{
			status: resp.StatusCode,
			body:   strings.TrimSpace(string(detail)),
		})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}
