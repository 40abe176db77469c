package history

import (
	"context"
	"log/slog"
	"time"
)

// EventType classifies a supervision lifecycle event.
type EventType string

const (
	EventResolve         EventType = "resolve"
	EventPortConflict    EventType = "port_conflict"
	EventPortFreed       EventType = "port_freed"
	EventDepsMissing     EventType = "deps_missing"
	EventSpawn           EventType = "spawn"
	EventCommand         EventType = "command"
	EventStop            EventType = "stop"
	EventCrash           EventType = "crash"
	EventRestart         EventType = "restart"
	EventRestartGiveUp   EventType = "restart_exhausted"
	EventHealthChange    EventType = "health_change"
	EventErrorCapture    EventType = "error_capture"
	EventShutdown        EventType = "shutdown"
	EventStartupAborted  EventType = "startup_aborted"
	EventStartupComplete EventType = "startup_complete"
)

// Event is one diagnostic history row. Supervision state is never restored
// from history; this is an audit trail only.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Slot       string    `json:"slot"`
	Detail     string    `json:"detail"`
}

// Sink is a destination for history events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Recorder fans events out to zero or more sinks, best-effort. Sink errors
// are logged and never propagate into supervision flow.
type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, logger: logger.With("source", "history")}
}

func (r *Recorder) Record(typ EventType, slotName, detail string) {
	if r == nil {
		return
	}
	e := Event{Type: typ, OccurredAt: time.Now(), Slot: slotName, Detail: detail}
	for _, s := range r.sinks {
		if err := s.Send(context.Background(), e); err != nil {
			r.logger.Warn("history sink send failed", "type", typ, "err", err)
		}
	}
}

// Close closes every sink that is also an io.Closer.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	for _, s := range r.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}
