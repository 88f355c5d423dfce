package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/gateway/internal/audio"
	"github.com/assistkit/gateway/internal/chat"
	"github.com/assistkit/gateway/internal/feedback"
	"github.com/assistkit/gateway/internal/models"
	"github.com/assistkit/gateway/internal/tracing"
)

// fakeFeedbackClient records the backend calls made through a real
// feedback.Manager.
type fakeFeedbackClient struct {
	created []tracing.CreateFeedbackRequest
	updated []uuid.UUID
	err     error
}

func (f *fakeFeedbackClient) CreateFeedback(_ context.Context, req tracing.CreateFeedbackRequest) error {
	f.created = append(f.created, req)
	return f.err
}

func (f *fakeFeedbackClient) UpdateFeedback(_ context.Context, id uuid.UUID, _ tracing.UpdateFeedbackRequest) error {
	f.updated = append(f.updated, id)
	return f.err
}

type fakeResolver struct {
	url  string
	err  error
	seen []uuid.UUID
}

func (f *fakeResolver) ResolveShareURL(_ context.Context, runID uuid.UUID) (string, error) {
	f.seen = append(f.seen, runID)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeTranscriber struct {
	transcript string
	err        error
	paths      []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.transcript, f.err
}

// fakeSynthesizer writes canned bytes through a real audio.Store, the same
// way the provider-backed synthesizer does.
type fakeSynthesizer struct {
	store *audio.Store
	body  []byte
	err   error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string, conversationID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.store.Persist(conversationID+".mp3", bytes.NewReader(f.body))
}

type testEnv struct {
	handlers    *Handlers
	backend     *fakeFeedbackClient
	resolver    *fakeResolver
	store       *audio.Store
	transcriber *fakeTranscriber
	synthesizer *fakeSynthesizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := &fakeFeedbackClient{}
	resolver := &fakeResolver{url: "https://smith.langchain.com/public/abc/r"}
	store := audio.NewStore(filepath.Join(t.TempDir(), "audio"))
	transcriber := &fakeTranscriber{transcript: "hello world"}
	synthesizer := &fakeSynthesizer{store: store, body: []byte("mp3-bytes")}

	h := NewHandlers(
		chat.NewMockEngine("test-model"),
		feedback.NewManager(backend),
		resolver,
		store,
		transcriber,
		synthesizer,
		nil,
	)

	return &testEnv{
		handlers:    h,
		backend:     backend,
		resolver:    resolver,
		store:       store,
		transcriber: transcriber,
		synthesizer: synthesizer,
	}
}

func (env *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	RegisterRoutes(mux, env.handlers)

	rec := httptest.NewRecorder()
	CORSMiddleware(mux).ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body any) *http.Request {
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ok", resp.Status)
}

func TestSendFeedbackMissingRunID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/feedback", SendFeedbackBody{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, Envelope{Result: "No LangSmith run ID provided", Code: 400}, decodeEnvelope(t, rec))
	require.Empty(t, env.backend.created)
}

func TestSendFeedbackMalformedRunID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/feedback", SendFeedbackBody{RunID: "not-a-uuid"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid LangSmith run ID", decodeEnvelope(t, rec).Result)
	require.Empty(t, env.backend.created)
}

func TestSendFeedbackSuccess(t *testing.T) {
	env := newTestEnv(t)

	runID := uuid.New()
	score := models.NumberScore(0.5)
	rec := env.serve(jsonRequest(http.MethodPost, "/feedback", SendFeedbackBody{
		RunID:   runID.String(),
		Score:   &score,
		Comment: "great",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Envelope{Result: "posted feedback successfully", Code: 200}, decodeEnvelope(t, rec))

	require.Len(t, env.backend.created, 1)
	created := env.backend.created[0]
	require.Equal(t, runID, created.RunID)
	require.Equal(t, "user_score", created.Key)
	require.Equal(t, 0.5, created.Score.Float64())
	require.Equal(t, "great", created.Comment)
	require.Nil(t, created.FeedbackID)
}

func TestUpdateFeedbackMissingIDNeverCallsBackend(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPatch, "/feedback", UpdateFeedbackBody{Comment: "late note"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, Envelope{Result: "No feedback ID provided", Code: 400}, decodeEnvelope(t, rec))
	require.Empty(t, env.backend.updated)
}

func TestUpdateFeedbackSuccess(t *testing.T) {
	env := newTestEnv(t)

	fid := uuid.New()
	score := models.NumberScore(0.5)
	rec := env.serve(jsonRequest(http.MethodPatch, "/feedback", UpdateFeedbackBody{
		FeedbackID: fid.String(),
		Score:      &score,
		Comment:    "great",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "patched feedback successfully", decodeEnvelope(t, rec).Result)
	require.Equal(t, []uuid.UUID{fid}, env.backend.updated)
}

func TestGetTraceMissingRunID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/get_trace", GetTraceBody{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No LangSmith run ID provided", decodeEnvelope(t, rec).Result)
	require.Empty(t, env.resolver.seen)
}

func TestGetTraceSuccess(t *testing.T) {
	env := newTestEnv(t)

	runID := uuid.New()
	rec := env.serve(jsonRequest(http.MethodPost, "/get_trace", GetTraceBody{RunID: runID.String()}))
	require.Equal(t, http.StatusOK, rec.Code)

	var url string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&url))
	require.Equal(t, env.resolver.url, url)
	require.Equal(t, []uuid.UUID{runID}, env.resolver.seen)
}

func TestGetTraceUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.resolver.err = fmt.Errorf("%w: run never became readable", tracing.ErrTraceUnavailable)

	rec := env.serve(jsonRequest(http.MethodPost, "/get_trace", GetTraceBody{RunID: uuid.NewString()}))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 503, decodeEnvelope(t, rec).Code)
}

func multipartUpload(t *testing.T, filename, conversationID string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("conversationId", conversationID))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe_audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestTranscribeAudioDeletesUpload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(multipartUpload(t, "clip.wav", "abc", []byte("RIFF....")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TranscriptResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "hello world", resp.Transcript)
	require.Equal(t, "abc", resp.ConversationID)

	require.Len(t, env.transcriber.paths, 1)
	require.Equal(t, "clip.wav", filepath.Base(env.transcriber.paths[0]))

	entries, err := os.ReadDir(env.store.Dir())
	require.NoError(t, err)
	require.Empty(t, entries, "uploaded file must not outlive the request")
}

func TestTranscribeAudioProviderErrorStillDeletesUpload(t *testing.T) {
	env := newTestEnv(t)
	env.transcriber.err = errors.New("provider unavailable")

	rec := env.serve(multipartUpload(t, "clip.wav", "abc", []byte("RIFF....")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries, err := os.ReadDir(env.store.Dir())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTranscribeAudioMissingFile(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/transcribe_audio", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rec := env.serve(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextToSpeech(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/text_to_speech", TextToSpeechBody{
		Message:        "hello",
		ConversationID: "abc",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "abc.mp3")

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, []byte("mp3-bytes"), body)

	// the artifact stays behind for the janitor to collect later.
	data, err := os.ReadFile(filepath.Join(env.store.Dir(), "abc.mp3"))
	require.NoError(t, err)
	require.Equal(t, []byte("mp3-bytes"), data)
}

func TestTextToSpeechValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/text_to_speech", TextToSpeechBody{ConversationID: "abc"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No message provided", decodeEnvelope(t, rec).Result)

	rec = env.serve(jsonRequest(http.MethodPost, "/text_to_speech", TextToSpeechBody{Message: "hello"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No conversation ID provided", decodeEnvelope(t, rec).Result)
}

func TestTextToSpeechConcurrentSameConversation(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := env.serve(jsonRequest(http.MethodPost, "/text_to_speech", TextToSpeechBody{
				Message:        "hello",
				ConversationID: "abc",
			}))
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(env.store.Dir(), "abc.mp3"))
	require.NoError(t, err)
	require.Equal(t, []byte("mp3-bytes"), data)
}

func TestChatInvoke(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/chat/invoke", ChatBody{
		Input: json.RawMessage(`"what is Go?"`),
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatInvokeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "Mock response for: what is Go?", resp.Output)

	runID, ok := resp.Metadata["run_id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(runID)
	require.NoError(t, err, "run_id must be usable for trace and feedback lookups")
}

func TestChatInvokeMissingInput(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/chat/invoke", ChatBody{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStream(t *testing.T) {
	env := newTestEnv(t)

	rec := env.serve(jsonRequest(http.MethodPost, "/chat/stream", ChatBody{
		Input: json.RawMessage(`"what is Go?"`),
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.Contains(t, body, "event: data\n")
	require.Contains(t, body, "event: end\n")

	// reassemble the data chunks; they must add up to the full output.
	var output strings.Builder
	for _, block := range strings.Split(body, "\n\n") {
		lines := strings.SplitN(block, "\n", 2)
		if len(lines) != 2 || lines[0] != "event: data" {
			continue
		}
		var chunk string
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &chunk))
		output.WriteString(chunk)
	}
	require.Equal(t, "Mock response for: what is Go?", output.String())
	require.Contains(t, body, "run_id")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/feedback", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := env.serve(req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
