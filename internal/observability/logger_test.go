package observability

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout collects everything f prints to stdout.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w
	f()
	w.Close()
	os.Stdout = old

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}
	return string(data)
}

func decodeEvents(t *testing.T, out string) []Event {
	t.Helper()
	var events []Event
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			t.Fatalf("event line is not valid JSON: %q (%v)", line, err)
		}
		events = append(events, evt)
	}
	return events
}

func TestLoggerEmitsActionEvent(t *testing.T) {
	l := NewLogger()
	out := captureStdout(t, func() {
		l.LogAction("chat-1", "", "browse", "https://example.com", "tab-1")
	})

	events := decodeEvents(t, out)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventTypeAction {
		t.Errorf("event type is %s, want %s", events[0].Type, EventTypeAction)
	}
	if events[0].ChatID != "chat-1" {
		t.Errorf("chat id lost: %q", events[0].ChatID)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestLoggerEmitsReadinessEvent(t *testing.T) {
	l := NewLogger()
	out := captureStdout(t, func() {
		l.LogReadiness("chat-1", "", "tab-2", "complete")
	})

	events := decodeEvents(t, out)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventTypeReadiness {
		t.Errorf("event type is %s, want %s", events[0].Type, EventTypeReadiness)
	}
	data, ok := events[0].Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %T", events[0].Data)
	}
	if data["status"] != "complete" || data["tab_id"] != "tab-2" {
		t.Errorf("readiness payload mangled: %v", data)
	}
}

func TestLoggerEmitsFeedbackEvent(t *testing.T) {
	l := NewLogger()
	out := captureStdout(t, func() {
		l.LogFeedback("LULO_NOTIFY", "Clicked Sign in", "success")
	})

	events := decodeEvents(t, out)
	if len(events) != 1 || events[0].Type != EventTypeFeedback {
		t.Fatalf("expected one feedback event, got %v", events)
	}
}
