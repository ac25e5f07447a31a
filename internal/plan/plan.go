package plan

import "strings"

// Action identifies what kind of browser work a step asks for.
type Action string

const (
	ActionNavigate Action = "navigate"
	ActionBrowse   Action = "browse"
	ActionClick    Action = "click"
	ActionType     Action = "type"
	ActionExtract  Action = "extract"
	ActionEmail    Action = "email"
	ActionSearch   Action = "search"
	ActionGuide    Action = "guide"
	ActionPreview  Action = "preview"
	ActionThink    Action = "think"
)

// Known reports whether a is part of the closed action set. Unknown
// actions are dispatched as no-ops, never as errors.
func (a Action) Known() bool {
	switch a {
	case ActionNavigate, ActionBrowse, ActionClick, ActionType, ActionExtract,
		ActionEmail, ActionSearch, ActionGuide, ActionPreview, ActionThink:
		return true
	}
	return false
}

// StepData carries the action-specific payload of a step. Only the
// fields relevant to the step's action are set; the whole payload may
// be absent for actions without side effects (think).
type StepData struct {
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	To       string `json:"to,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Body     string `json:"body,omitempty"`
	Query    string `json:"query,omitempty"`
	Message  string `json:"message,omitempty"`
	Target   string `json:"target,omitempty"`
	HTML     string `json:"html,omitempty"`
	CSS      string `json:"css,omitempty"`
	JS       string `json:"js,omitempty"`
}

// Step is one planned unit of browser work.
type Step struct {
	Action      Action    `json:"action"`
	Description string    `json:"description"`
	Data        *StepData `json:"data,omitempty"`
}

// Plan is an ordered sequence of steps for one user request. It is
// immutable once handed to the dispatcher.
type Plan struct {
	Steps []Step `json:"steps"`
}

// ExecutionResult records one step's reportable effect. Steps that
// produce no effect (think, unknown action, missing required field)
// contribute no result.
type ExecutionResult struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	TabID       string `json:"tab_id,omitempty"`
}

// Report is the final outcome of dispatching a plan.
type Report struct {
	Success bool              `json:"success"`
	Reply   string            `json:"reply,omitempty"`
	Error   string            `json:"error,omitempty"`
	Actions []ExecutionResult `json:"actions,omitempty"`
}

// FallbackReply is used when no step carried a description.
const FallbackReply = "Done."

// BuildReply joins the non-empty step descriptions in plan order.
func BuildReply(steps []Step) string {
	var parts []string
	for _, s := range steps {
		if s.Description != "" {
			parts = append(parts, s.Description)
		}
	}
	reply := strings.TrimSpace(strings.Join(parts, " "))
	if reply == "" {
		return FallbackReply
	}
	return reply
}
