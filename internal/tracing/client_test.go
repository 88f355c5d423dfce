package tracing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/gateway/internal/models"
)

func TestClientReadRun(t *testing.T) {
	runID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/runs/"+runID.String(), r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		json.NewEncoder(w).Encode(models.Run{ID: runID, Status: "success"}) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{Endpoint: srv.URL, APIKey: "test-key"})
	run, err := client.ReadRun(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, runID, run.ID)
	require.Equal(t, "success", run.Status)
}

func TestClientReadRunNotIndexedYet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"no run with that id"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{Endpoint: srv.URL})
	_, err := client.ReadRun(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestClientSharedLinkLifecycle(t *testing.T) {
	runID := uuid.New()
	shared := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/runs/"+runID.String()+"/share", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			if !shared {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(shareResponse{URL: "https://example.test/public/r"}) //nolint:errcheck
		case http.MethodPut:
			shared = true
			json.NewEncoder(w).Encode(shareResponse{URL: "https://example.test/public/r"}) //nolint:errcheck
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{Endpoint: srv.URL})

	_, err := client.ReadSharedLink(context.Background(), runID)
	require.ErrorIs(t, err, ErrNotShared)

	url, err := client.ShareRun(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, "https://example.test/public/r", url)

	url, err = client.ReadSharedLink(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, "https://example.test/public/r", url)
}

func TestClientCreateFeedbackPayload(t *testing.T) {
	runID := uuid.New()
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/feedback", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{Endpoint: srv.URL})
	score := models.NumberScore(0.5)
	err := client.CreateFeedback(context.Background(), CreateFeedbackRequest{
		RunID:   runID,
		Key:     "user_score",
		Score:   &score,
		Comment: "great",
	})
	require.NoError(t, err)

	require.Equal(t, runID.String(), got["run_id"])
	require.Equal(t, "user_score", got["key"])
	require.Equal(t, 0.5, got["score"])
	require.Equal(t, "great", got["comment"])
	require.NotContains(t, got, "id", "create must not supply a feedback id")
}

func TestClientUpdateFeedback(t *testing.T) {
	feedbackID := uuid.New()
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/feedback/"+feedbackID.String(), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{Endpoint: srv.URL})
	score := models.BoolScore(true)
	err := client.UpdateFeedback(context.Background(), feedbackID, UpdateFeedbackRequest{
		Score:   &score,
		Comment: "fixed",
	})
	require.NoError(t, err)
	require.Equal(t, true, got["score"])
	require.Equal(t, "fixed", got["comment"])
}

func TestClientSurfacesBackendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{Endpoint: srv.URL})
	_, err := client.ReadRun(context.Background(), uuid.New())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRunNotFound)
	require.Contains(t, err.Error(), "500")
}
