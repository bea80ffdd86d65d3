package sim

import (
	"github.com/rs/zerolog"
)

// EventLogger is a hook that writes one structured log line for every
// topology event it sees.
type EventLogger struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// NewEventLogger returns a new EventLogger which writes into the logger at
// debug level.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger, level: zerolog.DebugLevel}
}

// WithLevel sets the level of the written lines.
func (h *EventLogger) WithLevel(level zerolog.Level) *EventLogger {
	h.level = level
	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	e := h.logger.WithLevel(h.level).
		Int("round", ctx.Round).
		Str("event", ctx.Pos.Name)

	switch item := ctx.Item.(type) {
	case *Node:
		e = e.Int("node", item.ID()).Stringer("location", item.Location())
	case *Link:
		e = e.Int("src", item.Source.ID()).
			Int("dst", item.Destination.ID()).
			Stringer("type", item.Type).
			Stringer("mode", item.Mode)
	case *Message:
		e = e.Uint64("msg", item.ID).
			Int("src", item.Sender.ID()).
			Int("dst", item.Receiver.ID()).
			Int("due", item.DeliveryRound)
	}

	if ctx.Detail != nil {
		e = e.Interface("detail", ctx.Detail)
	}

	e.Send()
}
