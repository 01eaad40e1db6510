package log

import (
	"context"
	"log/slog"
	"net"
	"strconv"
)

// SlogAdapter prints protocol events through an slog.Logger, one record
// per event with the payload in a group named after its kind.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter logs events to logger at debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy that logs at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, a.level) {
		return
	}

	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("layer", event.Layer.String()),
		slog.String("dir", event.Direction.String()),
	)
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.Topic != "" {
		attrs = append(attrs, slog.String("topic", event.Topic))
	}
	if event.EndpointID != 0 {
		attrs = append(attrs, slog.Uint64("endpoint_id", event.EndpointID))
	}

	msg := "protocol " + event.Category.String()
	switch {
	case event.Frame != nil:
		msg = "frame"
		attrs = append(attrs, slog.Group("frame",
			slog.Int("size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated)))
	case event.Control != nil:
		msg = "control"
		c := event.Control
		attrs = append(attrs, slog.Group("control",
			slog.String("kind", c.Kind),
			slog.String("msg_type", c.MsgType),
			slog.String("subscriber", net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port))))))
	case event.StateChange != nil:
		msg = "state"
		s := event.StateChange
		group := []any{
			slog.String("entity", s.Entity.String()),
			slog.String("from", s.OldState),
			slog.String("to", s.NewState),
		}
		if s.Reason != "" {
			group = append(group, slog.String("reason", s.Reason))
		}
		attrs = append(attrs, slog.Group("state", group...))
	case event.Error != nil:
		msg = "protocol error"
		attrs = append(attrs, slog.Group("error",
			slog.String("layer", event.Error.Layer.String()),
			slog.String("message", event.Error.Message),
			slog.String("context", event.Error.Context)))
	}

	a.logger.LogAttrs(ctx, a.level, msg, attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
