package chat

import (
	"context"
	"log/slog"
	"strings"

	copilot "github.com/github/copilot-sdk/go"
)

const sessionFailedUnknown = "session failed with unknown error"

// eventsCollector accumulates the assistant's output from session events
// and, when emit is set, forwards each delta chunk as it arrives.
type eventsCollector struct {
	emit func(chunk string) error

	parts   []string
	errMsg  string
	emitErr error
}

func newEventsCollector(emit func(chunk string) error) *eventsCollector {
	return &eventsCollector{emit: emit}
}

// on is a callback, intended to be passed to [copilot.Session.On] to
// receive events in real-time.
func (c *eventsCollector) on(event copilot.SessionEvent) {
	switch event.Type {
	case copilot.AssistantMessageDelta:
		chunk := ""
		if event.Data.DeltaContent != nil {
			chunk = *event.Data.DeltaContent
		} else if event.Data.Content != nil {
			chunk = *event.Data.Content
		}
		c.forward(chunk)

	case copilot.AssistantMessage:
		if event.Data.Content != nil {
			c.parts = append(c.parts, *event.Data.Content)
		}

	case copilot.SessionError:
		if event.Data.Message == nil || *event.Data.Message == "" {
			c.errMsg = sessionFailedUnknown
		} else {
			c.errMsg = *event.Data.Message
		}
	}
}

// forward pushes a chunk to the caller. After the first emit failure
// (typically a disconnected client) further chunks are dropped; the turn
// itself still runs to completion.
func (c *eventsCollector) forward(chunk string) {
	if chunk == "" || c.emit == nil || c.emitErr != nil {
		return
	}
	if err := c.emit(chunk); err != nil {
		c.emitErr = err
		slog.Debug("stopped forwarding chat chunks", "error", err)
	}
}

// output returns the full assistant answer collected so far.
func (c *eventsCollector) output() string {
	var builder strings.Builder
	for _, p := range c.parts {
		builder.WriteString(p)
	}
	return builder.String()
}

// logEvent mirrors session events to slog at debug level.
func logEvent(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"type", event.Type,
	}

	attrs = addIf(attrs, "content", event.Data.Content)
	attrs = addIf(attrs, "deltaContent", event.Data.DeltaContent)
	attrs = addIf(attrs, "message", event.Data.Message)

	slog.Debug("chat event received", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name)
		attrs = append(attrs, *v)
	}

	return attrs
}
