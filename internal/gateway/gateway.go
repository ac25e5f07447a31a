package gateway

import (
	"context"

	"github.com/lulo-labs/lulo/internal/plan"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Handler turns a natural-language request into a dispatched report.
type Handler interface {
	Handle(ctx context.Context, chatID string, input string) plan.Report
}

// formatReport renders a report for a chat reply.
func formatReport(rep plan.Report) string {
	if !rep.Success {
		if rep.Error != "" {
			return "I couldn't do that: " + rep.Error
		}
		return "I couldn't do that."
	}
	return rep.Reply
}
