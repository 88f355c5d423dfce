package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/assistkit/gateway/internal/chat"
	"github.com/assistkit/gateway/internal/feedback"
	"github.com/assistkit/gateway/internal/tracing"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-alpha.1"

// Handlers holds the HTTP handler methods for the gateway API.
type Handlers struct {
	engine      chat.Engine
	feedback    FeedbackManager
	resolver    TraceResolver
	store       ArtifactStore
	transcriber AudioTranscriber
	synthesizer SpeechSynthesizer
	logger      *slog.Logger
}

// NewHandlers creates a Handlers over the given collaborators.
func NewHandlers(engine chat.Engine, fm FeedbackManager, resolver TraceResolver, store ArtifactStore, transcriber AudioTranscriber, synthesizer SpeechSynthesizer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:      engine,
		feedback:    fm,
		resolver:    resolver,
		store:       store,
		transcriber: transcriber,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleSendFeedback records new feedback for a run.
func (h *Handlers) HandleSendFeedback(w http.ResponseWriter, r *http.Request) {
	var body SendFeedbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.RunID == "" {
		writeResult(w, http.StatusBadRequest, "No LangSmith run ID provided")
		return
	}
	runID, err := uuid.Parse(body.RunID)
	if err != nil {
		writeResult(w, http.StatusBadRequest, "Invalid LangSmith run ID")
		return
	}

	req := feedback.CreateRequest{
		RunID:   runID,
		Key:     body.Key,
		Score:   body.Score,
		Comment: body.Comment,
	}
	if body.FeedbackID != "" {
		fid, err := uuid.Parse(body.FeedbackID)
		if err != nil {
			writeResult(w, http.StatusBadRequest, "Invalid feedback ID")
			return
		}
		req.FeedbackID = &fid
	}

	if err := h.feedback.Create(r.Context(), req); err != nil {
		h.logger.Error("feedback create failed", "run_id", runID, "error", err)
		writeResult(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, http.StatusOK, "posted feedback successfully")
}

// HandleUpdateFeedback modifies an existing feedback record.
func (h *Handlers) HandleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	var body UpdateFeedbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req := feedback.UpdateRequest{
		Score:   body.Score,
		Comment: body.Comment,
	}
	if body.FeedbackID != "" {
		fid, err := uuid.Parse(body.FeedbackID)
		if err != nil {
			writeResult(w, http.StatusBadRequest, "Invalid feedback ID")
			return
		}
		req.FeedbackID = &fid
	}

	if err := h.feedback.Update(r.Context(), req); err != nil {
		if errors.Is(err, feedback.ErrMissingFeedbackID) {
			writeResult(w, http.StatusBadRequest, "No feedback ID provided")
			return
		}
		h.logger.Error("feedback update failed", "error", err)
		writeResult(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, http.StatusOK, "patched feedback successfully")
}

// HandleGetTrace resolves the shareable trace URL for a run.
func (h *Handlers) HandleGetTrace(w http.ResponseWriter, r *http.Request) {
	var body GetTraceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.RunID == "" {
		writeResult(w, http.StatusBadRequest, "No LangSmith run ID provided")
		return
	}
	runID, err := uuid.Parse(body.RunID)
	if err != nil {
		writeResult(w, http.StatusBadRequest, "Invalid LangSmith run ID")
		return
	}

	url, err := h.resolver.ResolveShareURL(r.Context(), runID)
	if err != nil {
		if errors.Is(err, tracing.ErrTraceUnavailable) {
			h.logger.Warn("trace not readable", "run_id", runID, "error", err)
			writeResult(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("trace share failed", "run_id", runID, "error", err)
		writeResult(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, url)
}

// HandleTranscribeAudio accepts an uploaded audio file, transcribes it, and
// deletes the local copy before responding.
func (h *Handlers) HandleTranscribeAudio(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeResult(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	conversationID := r.FormValue("conversationId")

	path, err := h.store.Persist(header.Filename, file)
	if err != nil {
		h.logger.Error("audio persist failed", "name", header.Filename, "error", err)
		writeResult(w, http.StatusInternalServerError, err.Error())
		return
	}
	// the uploaded copy is ephemeral: it only exists for the provider call.
	defer h.store.Remove(path) //nolint:errcheck

	transcript, err := h.transcriber.Transcribe(r.Context(), path)
	if err != nil {
		h.logger.Error("transcription failed", "path", path, "error", err)
		writeResult(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TranscriptResponse{
		Transcript:     transcript,
		ConversationID: conversationID,
	})
}

// HandleTextToSpeech synthesizes speech for a message and returns the audio
// bytes. The artifact stays on disk until the sweep janitor collects it.
func (h *Handlers) HandleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	var body TextToSpeechBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Message == "" {
		writeResult(w, http.StatusBadRequest, "No message provided")
		return
	}
	if body.ConversationID == "" {
		writeResult(w, http.StatusBadRequest, "No conversation ID provided")
		return
	}

	path, err := h.synthesizer.Synthesize(r.Context(), body.Message, body.ConversationID)
	if err != nil {
		h.logger.Error("speech synthesis failed", "conversation_id", body.ConversationID, "error", err)
		writeResult(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.mp3", body.ConversationID))
	http.ServeFile(w, r, path)
}

// HandleChatInvoke runs one buffered chat turn.
func (h *Handlers) HandleChatInvoke(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatBody(w, r)
	if !ok {
		return
	}

	resp, err := h.engine.Execute(r.Context(), req)
	if err != nil {
		h.logger.Error("chat turn failed", "error", err)
		writeResult(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChatInvokeResponse{
		Output:   resp.Output,
		Metadata: chatResponseMetadata(resp),
	})
}

// HandleChatStream runs one chat turn, forwarding output chunks as
// server-sent events. A terminal "end" event carries the run metadata the
// caller needs for later trace and feedback lookups.
func (h *Handlers) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatBody(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeResult(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	resp, err := h.engine.Stream(r.Context(), req, func(chunk string) error {
		if err := writeEvent(w, "data", chunk); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// headers are already out; the best we can do is an error event.
		h.logger.Error("chat stream failed", "error", err)
		writeEvent(w, "error", err.Error()) //nolint:errcheck
		flusher.Flush()
		return
	}

	writeEvent(w, "end", chatResponseMetadata(resp)) //nolint:errcheck
	flusher.Flush()
}

func decodeChatBody(w http.ResponseWriter, r *http.Request) (*chat.Request, bool) {
	var body ChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if len(body.Input) == 0 {
		writeResult(w, http.StatusBadRequest, "No input provided")
		return nil, false
	}
	return &chat.Request{
		Input:    body.Input,
		Metadata: body.Config.Metadata,
	}, true
}

func chatResponseMetadata(resp *chat.Response) map[string]any {
	md := map[string]any{
		"run_id":      resp.RunID.String(),
		"model":       resp.ModelID,
		"session_id":  resp.SessionID,
		"duration_ms": resp.DurationMs,
		"success":     resp.Success,
	}
	if resp.ErrorMsg != "" {
		md["error"] = resp.ErrorMsg
	}
	return md
}

// RegisterRoutes registers all gateway routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("POST /chat/invoke", h.HandleChatInvoke)
	mux.HandleFunc("POST /chat/stream", h.HandleChatStream)
	mux.HandleFunc("POST /feedback", h.HandleSendFeedback)
	mux.HandleFunc("PATCH /feedback", h.HandleUpdateFeedback)
	mux.HandleFunc("POST /get_trace", h.HandleGetTrace)
	mux.HandleFunc("POST /transcribe_audio", h.HandleTranscribeAudio)
	mux.HandleFunc("POST /text_to_speech", h.HandleTextToSpeech)
}

// CORSMiddleware wraps a handler with permissive CORS headers. The gateway
// fronts a single-user assistant UI served from arbitrary origins, so every
// origin is echoed back.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeResult(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Result: msg, Code: status})
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
