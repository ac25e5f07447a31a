package feedback

import (
	"context"

	"github.com/lulo-labs/lulo/internal/observability"
)

// EventLog mirrors feedback traffic into the structured event log, so
// sessions can be replayed even when nobody watched the overlay.
type EventLog struct {
	Logger *observability.Logger
}

func NewEventLog(logger *observability.Logger) *EventLog {
	return &EventLog{Logger: logger}
}

func (e *EventLog) Name() string { return "log" }

func (e *EventLog) Deliver(ctx context.Context, msg Message) error {
	if e.Logger == nil {
		return nil
	}
	e.Logger.LogFeedback(string(msg.Type), msg.Text, msg.Level)
	return nil
}
