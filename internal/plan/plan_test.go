package plan

import "testing"

func TestActionKnown(t *testing.T) {
	known := []Action{
		ActionNavigate, ActionBrowse, ActionClick, ActionType, ActionExtract,
		ActionEmail, ActionSearch, ActionGuide, ActionPreview, ActionThink,
	}
	for _, a := range known {
		if !a.Known() {
			t.Errorf("expected %q to be a known action", a)
		}
	}

	for _, a := range []Action{"", "scroll", "CLICK", "navigate "} {
		if a.Known() {
			t.Errorf("expected %q to be unknown", a)
		}
	}
}

func TestBuildReply(t *testing.T) {
	steps := []Step{
		{Action: ActionThink, Description: "Opening Gmail"},
		{Action: ActionEmail, Description: "and composing the draft."},
	}
	if got := BuildReply(steps); got != "Opening Gmail and composing the draft." {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestBuildReplySkipsEmptyDescriptions(t *testing.T) {
	steps := []Step{
		{Action: ActionBrowse},
		{Action: ActionThink, Description: "Here you go."},
		{Action: ActionClick},
	}
	if got := BuildReply(steps); got != "Here you go." {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestBuildReplyFallback(t *testing.T) {
	if got := BuildReply(nil); got != FallbackReply {
		t.Errorf("expected fallback reply, got %q", got)
	}
	if got := BuildReply([]Step{{Action: ActionClick}}); got != FallbackReply {
		t.Errorf("expected fallback reply, got %q", got)
	}
}
