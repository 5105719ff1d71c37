package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see exchanges in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes exchange events at Debug level and error events at Warn level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("request_id", event.RequestID),
		slog.String("direction", event.Direction.String()),
		slog.String("channel", event.Channel.String()),
		slog.String("category", event.Category.String()),
		slog.String("role", event.LocalRole.String()),
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	level := slog.LevelDebug
	switch {
	case event.Exchange != nil:
		ex := event.Exchange
		attrs = append(attrs,
			slog.String("path", ex.Path),
			slog.Int("size", ex.Size),
		)
		if ex.Method != "" {
			attrs = append(attrs, slog.String("method", ex.Method))
		}
		if ex.Status != 0 {
			attrs = append(attrs, slog.Int("status", ex.Status))
		}
		if ex.EventName != "" {
			attrs = append(attrs, slog.String("event", ex.EventName))
		}
		if ex.Duration != nil {
			attrs = append(attrs, slog.Duration("duration", *ex.Duration))
		}
		if ex.Payload != nil {
			attrs = append(attrs, slog.String("payload", ex.Payload.String()))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("stage", event.Error.Stage.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
		if event.Error.Structural {
			attrs = append(attrs, slog.Bool("structural", true))
		}
		if event.Error.Fallback {
			attrs = append(attrs, slog.Bool("fallback", true))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
