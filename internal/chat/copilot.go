package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/google/uuid"
)

// CopilotEngine runs chat turns through the Copilot SDK. Each turn maps to
// one SDK session message; callers can pin a session via the metadata
// session_id key to keep conversational context across turns.
type CopilotEngine struct {
	defaultModelID string

	client copilotClient

	startOnce sync.Once
}

// CopilotEngineOptions customizes engine construction.
type CopilotEngineOptions struct {
	// NewCopilotClient substitutes the SDK client factory, mainly for tests.
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotEngine creates a CopilotEngine.
//   - defaultModelID - used if no model is named in the turn metadata. Can be
//     blank, which means the copilot CLI will choose its own fallback model.
func NewCopilotEngine(defaultModelID string, options *CopilotEngineOptions) *CopilotEngine {
	copilotOptions := &copilot.ClientOptions{
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	var client copilotClient
	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(copilotOptions)
	} else {
		client = options.NewCopilotClient(copilotOptions)
	}

	return &CopilotEngine{
		defaultModelID: defaultModelID,
		client:         client,
	}
}

// Initialize sets up the engine.
func (e *CopilotEngine) Initialize(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Execute runs one buffered chat turn.
func (e *CopilotEngine) Execute(ctx context.Context, req *Request) (*Response, error) {
	return e.run(ctx, req, nil)
}

// Stream runs one chat turn, forwarding output chunks through emit.
func (e *CopilotEngine) Stream(ctx context.Context, req *Request, emit func(chunk string) error) (*Response, error) {
	return e.run(ctx, req, emit)
}

func (e *CopilotEngine) run(ctx context.Context, req *Request, emit func(chunk string) error) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to CopilotEngine")
	}

	var startErr error

	e.startOnce.Do(func() {
		// NOTE: the copilot client has an 'autostart' feature, but it runs
		// into issues when it tries to autostart from separate goroutines.
		startErr = e.client.Start(ctx)
	})

	if startErr != nil {
		return nil, fmt.Errorf("copilot failed to start: %w", startErr)
	}

	opts, err := DecodeOptions(req.Metadata)
	if err != nil {
		return nil, err
	}

	modelID := e.defaultModelID
	if opts.Model != "" {
		modelID = opts.Model // caller override for this turn
	}

	runID := uuid.New()
	start := time.Now()

	session, err := e.openSession(ctx, modelID, opts.SessionID)
	if err != nil {
		return nil, err
	}

	collector := newEventsCollector(emit)

	unsubscribe := session.On(collector.on)
	defer unsubscribe()

	unsubscribe = session.On(logEvent)
	defer unsubscribe()

	_, err = session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: req.Prompt(),
	})

	var errMsg string

	if err != nil {
		// errors that are returned inline, as part of the conversation, also
		// come back in the returned error, so the message is carried in the
		// Response rather than failing the call.
		errMsg = err.Error()
	} else if collector.errMsg != "" {
		errMsg = collector.errMsg
	}

	resp := &Response{
		RunID:      runID,
		Output:     collector.output(),
		ModelID:    modelID,
		SessionID:  session.SessionID(),
		DurationMs: time.Since(start).Milliseconds(),
		ErrorMsg:   errMsg,
		Success:    errMsg == "",
	}

	return resp, nil
}

func (e *CopilotEngine) openSession(ctx context.Context, modelID, sessionID string) (copilotSession, error) {
	if sessionID == "" {
		session, err := e.client.CreateSession(ctx, &copilot.SessionConfig{
			Model:               modelID,
			OnPermissionRequest: denyAllTools,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		return session, nil
	}

	session, err := e.client.ResumeSessionWithOptions(ctx, sessionID, &copilot.ResumeSessionConfig{
		Model:               modelID,
		OnPermissionRequest: denyAllTools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resume session (%s): %w", sessionID, err)
	}
	return session, nil
}

// Shutdown cleans up resources.
func (e *CopilotEngine) Shutdown(ctx context.Context) error {
	if err := e.client.Stop(); err != nil {
		slog.Info("failed to stop copilot client", "error", err)
	}
	return nil
}

// denyAllTools refuses tool execution: the gateway answers chat turns, it
// does not grant the pipeline access to its host.
func denyAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	return copilot.PermissionRequestResult{Kind: "denied"}, nil
}
