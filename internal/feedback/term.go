package feedback

import (
	"context"

	"github.com/lulo-labs/lulo/internal/observability"
)

// TerminalStatus mirrors automation state onto the live terminal
// status line, so the operator sees progress even with a headless
// browser.
type TerminalStatus struct{}

func NewTerminalStatus() *TerminalStatus { return &TerminalStatus{} }

func (t *TerminalStatus) Name() string { return "terminal" }

func (t *TerminalStatus) Deliver(ctx context.Context, msg Message) error {
	switch msg.Type {
	case MsgStart:
		observability.SetStatus(observability.RoleDispatching, "Automating...")
	case MsgStatus:
		text := msg.Text
		if text == "" {
			text = "Automating..."
		}
		observability.SetStatus(observability.RoleDispatching, text)
	case MsgEnd:
		observability.SetStatus(observability.RoleIdle, "")
	}
	return nil
}
