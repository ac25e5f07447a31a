package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/lulo-labs/lulo/internal/plan"
)

// fakeModel returns a scripted response without touching a provider
// and records the messages it was sent.
type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func TestBuildPlanFromToolCall(t *testing.T) {
	args := `{"steps":[
		{"action":"browse","description":"Opening example.com.","data":{"url":"https://example.com"}},
		{"action":"click","description":"","data":{"selector":"Sign in"}}
	]}`
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{
			{FunctionCall: &llms.FunctionCall{Name: "propose_steps", Arguments: args}},
		}},
	}}}

	p := New(model, NewPromptManager("does-not-exist"), nil)
	got, err := p.BuildPlan(context.Background(), "chat-1", "open example.com and sign in", PageContext{}, nil)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got.Steps))
	}
	if got.Steps[0].Action != plan.ActionBrowse || got.Steps[0].Data.URL != "https://example.com" {
		t.Errorf("unexpected first step: %+v", got.Steps[0])
	}
	if got.Steps[1].Action != plan.ActionClick || got.Steps[1].Data.Selector != "Sign in" {
		t.Errorf("unexpected second step: %+v", got.Steps[1])
	}
}

func TestBuildPlanProseBecomesThinkStep(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: "I can't open local files, sorry."},
	}}}

	p := New(model, NewPromptManager("does-not-exist"), nil)
	got, err := p.BuildPlan(context.Background(), "chat-1", "open /etc/passwd", PageContext{}, nil)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if len(got.Steps) != 1 || got.Steps[0].Action != plan.ActionThink {
		t.Fatalf("expected a single think step, got %+v", got.Steps)
	}
	if got.Steps[0].Description != "I can't open local files, sorry." {
		t.Errorf("unexpected description: %q", got.Steps[0].Description)
	}
}

func TestBuildPlanEmptyResponseFails(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{}}}}
	p := New(model, NewPromptManager("does-not-exist"), nil)
	if _, err := p.BuildPlan(context.Background(), "chat-1", "do something", PageContext{}, nil); err == nil {
		t.Fatal("expected an error for an empty model response")
	}
}

func TestBuildPlanModelErrorPropagates(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("rate limited")}
	p := New(model, NewPromptManager("does-not-exist"), nil)
	if _, err := p.BuildPlan(context.Background(), "chat-1", "do something", PageContext{}, nil); err == nil {
		t.Fatal("expected the transport error to propagate")
	}
}

func TestBuildPlanReplaysHistory(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: "Clicking the second result."},
	}}}

	p := New(model, NewPromptManager("does-not-exist"), nil)
	_, err := p.BuildPlan(context.Background(), "chat-1", "now click the second one", PageContext{}, []Exchange{
		{Input: "search for go html parsers", Reply: "Here are the results."},
	})
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	// system, past human, past AI, current human
	if len(model.messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(model.messages))
	}
	if model.messages[1].Role != llms.ChatMessageTypeHuman {
		t.Errorf("message 1 role is %s, want human", model.messages[1].Role)
	}
	if model.messages[2].Role != llms.ChatMessageTypeAI {
		t.Errorf("message 2 role is %s, want ai", model.messages[2].Role)
	}
	if model.messages[3].Role != llms.ChatMessageTypeHuman {
		t.Errorf("message 3 role is %s, want human", model.messages[3].Role)
	}
	if got := contentText(model.messages[1]); got != "search for go html parsers" {
		t.Errorf("past input mangled: %q", got)
	}
	if got := contentText(model.messages[2]); got != "Here are the results." {
		t.Errorf("past reply mangled: %q", got)
	}
}

func TestBuildPlanSkipsEmptyHistoryEntries(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: "ok"},
	}}}

	p := New(model, NewPromptManager("does-not-exist"), nil)
	_, err := p.BuildPlan(context.Background(), "chat-1", "hello", PageContext{}, []Exchange{
		{Input: "", Reply: "orphaned reply"},
		{Input: "request that failed", Reply: ""},
	})
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	// system, surviving past human, current human
	if len(model.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(model.messages))
	}
}

func contentText(msg llms.MessageContent) string {
	for _, part := range msg.Parts {
		if tp, ok := part.(llms.TextContent); ok {
			return tp.Text
		}
	}
	return ""
}

func TestParseStepsRejectsMalformedArguments(t *testing.T) {
	if _, err := ParseSteps(`{"steps": "not an array"}`); err == nil {
		t.Fatal("expected an error for malformed arguments")
	}
	if _, err := ParseSteps(`{`); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
}
