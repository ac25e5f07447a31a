package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lulo-labs/lulo/internal/browser"
	"github.com/lulo-labs/lulo/internal/dom"
	"github.com/lulo-labs/lulo/internal/feedback"
	"github.com/lulo-labs/lulo/internal/governance"
	"github.com/lulo-labs/lulo/internal/observability"
	"github.com/lulo-labs/lulo/internal/plan"
)

const fixturePage = `<html><body>
<form id="login">
  <input type="text" placeholder="Email or username">
  <button id="submit">Sign in</button>
</form>
</body></html>`

type fakeTab struct {
	id     string
	url    string
	status browser.Status
}

func (t *fakeTab) TabID() string                            { return t.id }
func (t *fakeTab) CurrentURL() string                       { return t.url }
func (t *fakeTab) Status(ctx context.Context) browser.Status { return t.status }

type fakePage struct {
	mu      sync.Mutex
	html    string
	clicked []string
	values  map[string]string
	text    string
	rectErr error

	// clickGate, when set, blocks Click until the channel is closed.
	clickGate chan struct{}
}

func (p *fakePage) HTML(ctx context.Context) (string, error) { return p.html, nil }

func (p *fakePage) ScrollIntoView(ctx context.Context, sel string) error { return nil }

func (p *fakePage) Click(ctx context.Context, sel string) error {
	if p.clickGate != nil {
		<-p.clickGate
	}
	p.mu.Lock()
	p.clicked = append(p.clicked, sel)
	p.mu.Unlock()
	return nil
}

func (p *fakePage) SetValue(ctx context.Context, sel, value string) error {
	p.mu.Lock()
	if p.values == nil {
		p.values = make(map[string]string)
	}
	p.values[sel] = value
	p.mu.Unlock()
	return nil
}

func (p *fakePage) Text(ctx context.Context, sel string) (string, error) { return p.text, nil }

func (p *fakePage) Rect(ctx context.Context, sel string) (float64, float64, error) {
	if p.rectErr != nil {
		return 0, 0, p.rectErr
	}
	return 42, 84, nil
}

type fakeSession struct {
	mu          sync.Mutex
	active      *fakeTab
	page        *fakePage
	opened      []string
	navigated   []string
	openErr     error
	panicOnOpen bool
	nextTab     int
}

func (s *fakeSession) OpenTab(ctx context.Context, url string) (Tab, error) {
	if s.panicOnOpen {
		panic("browser process crashed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.nextTab++
	tab := &fakeTab{id: fmt.Sprintf("tab-%d", s.nextTab), url: url, status: browser.StatusComplete}
	s.opened = append(s.opened, url)
	s.active = tab
	return tab, nil
}

func (s *fakeSession) Navigate(ctx context.Context, tab Tab, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSession) ActiveTab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return s.active
}

func (s *fakeSession) ActivePage() Page {
	if s.page == nil {
		return nil
	}
	return s.page
}

type fakeRenderer struct {
	guides   []string
	previews []string
}

func (r *fakeRenderer) Guide(ctx context.Context, message, target string) error {
	r.guides = append(r.guides, message)
	return nil
}

func (r *fakeRenderer) Preview(ctx context.Context, html, css, js string) error {
	r.previews = append(r.previews, html)
	return nil
}

type recordingSurface struct {
	mu       sync.Mutex
	messages []feedback.Message
}

func (s *recordingSurface) Name() string { return "recorder" }

func (s *recordingSurface) Deliver(ctx context.Context, msg feedback.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return nil
}

func (s *recordingSurface) byType(mt feedback.MessageType) []feedback.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []feedback.Message
	for _, m := range s.messages {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

func newTestDispatcher(session Session, render Renderer, policy governance.PolicyEngine) (*Dispatcher, *recordingSurface) {
	surf := &recordingSurface{}
	fb := feedback.NewSynchronizer(surf)
	fb.EndDelay = 0

	domExec := dom.NewExecutor(fb)
	domExec.Settle = 0

	d := New(session, domExec, fb, render, policy, nil)
	d.SetWaiter(browser.Waiter{Interval: time.Millisecond, Timeout: 10 * time.Millisecond})
	return d, surf
}

func TestDispatchRunsStepsInOrder(t *testing.T) {
	session := &fakeSession{page: &fakePage{html: fixturePage}}
	d, _ := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionBrowse, Description: "Opening the login page.", Data: &plan.StepData{URL: "https://example.com/login"}},
		{Action: plan.ActionType, Data: &plan.StepData{Selector: "email", Text: "lulo@example.com"}},
		{Action: plan.ActionClick, Data: &plan.StepData{Selector: "Sign in"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("dispatch failed: %s", rep.Error)
	}
	want := []string{"browse", "type", "click"}
	if len(rep.Actions) != len(want) {
		t.Fatalf("expected %d actions, got %d: %+v", len(want), len(rep.Actions), rep.Actions)
	}
	for i, typ := range want {
		if rep.Actions[i].Type != typ {
			t.Errorf("action %d is %q, want %q", i, rep.Actions[i].Type, typ)
		}
	}
	if rep.Actions[0].TabID == "" {
		t.Error("browse action is missing its tab handle")
	}
	if rep.Reply != "Opening the login page." {
		t.Errorf("unexpected reply: %q", rep.Reply)
	}
	if len(session.page.clicked) != 1 {
		t.Errorf("expected one click on the page, got %v", session.page.clicked)
	}
}

func TestDispatchFailingStepDoesNotAbortPlan(t *testing.T) {
	session := &fakeSession{page: &fakePage{html: fixturePage}}
	d, surf := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionClick, Description: "Clicking the export button.", Data: &plan.StepData{Selector: "#missing"}},
		{Action: plan.ActionBrowse, Data: &plan.StepData{URL: "https://example.com"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("a failing step must not fail the plan: %s", rep.Error)
	}
	if len(rep.Actions) != 1 || rep.Actions[0].Type != "browse" {
		t.Fatalf("expected only the browse action, got %+v", rep.Actions)
	}
	// The failed step still contributes its description to the reply.
	if !strings.Contains(rep.Reply, "Clicking the export button.") {
		t.Errorf("failed step's description missing from reply: %q", rep.Reply)
	}
	// And the user saw an error toast for the unmatched target.
	sawError := false
	for _, m := range surf.byType(feedback.MsgNotify) {
		if m.Level == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error toast for the unresolvable selector")
	}
}

func TestDispatchThinkThenEmailScenario(t *testing.T) {
	session := &fakeSession{}
	d, _ := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionThink, Description: "Opening Gmail"},
		{Action: plan.ActionEmail, Data: &plan.StepData{To: "a@b.com"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("dispatch failed: %s", rep.Error)
	}
	if rep.Reply != "Opening Gmail" {
		t.Errorf("unexpected reply: %q", rep.Reply)
	}
	if len(rep.Actions) != 1 || rep.Actions[0].Type != "email" {
		t.Fatalf("expected exactly one email action, got %+v", rep.Actions)
	}
	if rep.Actions[0].TabID == "" {
		t.Error("email action is missing its tab handle")
	}
}

func TestDispatchPanickingStepIsIsolated(t *testing.T) {
	session := &fakeSession{panicOnOpen: true}
	d, _ := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionBrowse, Data: &plan.StepData{URL: "https://example.com"}},
		{Action: plan.ActionThink, Description: "Something went sideways."},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("a panicking step must not fail the plan: %s", rep.Error)
	}
	if len(rep.Actions) != 0 {
		t.Errorf("expected no actions, got %+v", rep.Actions)
	}
	if !strings.Contains(rep.Reply, "Something went sideways.") {
		t.Errorf("think description missing from reply: %q", rep.Reply)
	}
}

func TestDispatchRejectsOverlappingPlans(t *testing.T) {
	gate := make(chan struct{})
	page := &fakePage{html: fixturePage, clickGate: gate}
	session := &fakeSession{page: page}
	d, _ := newTestDispatcher(session, nil, nil)

	first := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionClick, Data: &plan.StepData{Selector: "Sign in"}},
	}}

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	var firstRep plan.Report
	go func() {
		defer wg.Done()
		close(started)
		firstRep = d.Dispatch(context.Background(), "chat-1", first)
	}()

	<-started
	// Give the first dispatch time to reach the blocked click.
	time.Sleep(20 * time.Millisecond)

	second := d.Dispatch(context.Background(), "chat-2", &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionThink, Description: "hello"},
	}})
	if second.Success {
		t.Fatal("overlapping dispatch should have been rejected")
	}
	if !strings.Contains(second.Error, "already running") {
		t.Errorf("unexpected rejection error: %q", second.Error)
	}

	close(gate)
	wg.Wait()
	d.Drain()

	if !firstRep.Success {
		t.Fatalf("first dispatch should have completed: %s", firstRep.Error)
	}

	// The session is free again once the first plan finished.
	third := d.Dispatch(context.Background(), "chat-2", &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionThink, Description: "hello again"},
	}})
	d.Drain()
	if !third.Success {
		t.Fatalf("dispatch after completion should succeed: %s", third.Error)
	}
}

func TestDispatchUnknownActionIsNoOp(t *testing.T) {
	session := &fakeSession{}
	d, _ := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: "scroll", Description: "Scrolling down."},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("unknown action must not fail the plan: %s", rep.Error)
	}
	if len(rep.Actions) != 0 {
		t.Errorf("unknown action must produce no result, got %+v", rep.Actions)
	}
	if rep.Reply != "Scrolling down." {
		t.Errorf("unknown action still contributes its description, got %q", rep.Reply)
	}
}

func TestDispatchPolicyDenyTurnsStepIntoNoOp(t *testing.T) {
	policy := governance.NewDefaultPolicyEngine()
	policy.DenyAction("email")

	session := &fakeSession{}
	d, surf := newTestDispatcher(session, nil, policy)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionEmail, Description: "Emailing the report.", Data: &plan.StepData{To: "a@example.com"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("a denied step must not fail the plan: %s", rep.Error)
	}
	if len(rep.Actions) != 0 {
		t.Errorf("denied step must produce no result, got %+v", rep.Actions)
	}
	if len(session.opened) != 0 {
		t.Errorf("denied step must not touch the browser, opened %v", session.opened)
	}
	if toasts := surf.byType(feedback.MsgNotify); len(toasts) == 0 {
		t.Error("expected a denial toast for the user")
	}
}

func TestDispatchNavigateReusesActiveTab(t *testing.T) {
	tab := &fakeTab{id: "tab-1", url: "https://example.com", status: browser.StatusComplete}
	session := &fakeSession{active: tab}
	d, _ := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionNavigate, Data: &plan.StepData{URL: "https://example.com/pricing"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("dispatch failed: %s", rep.Error)
	}
	if len(session.navigated) != 1 || session.navigated[0] != "https://example.com/pricing" {
		t.Errorf("expected one navigation, got %v", session.navigated)
	}
	if len(session.opened) != 0 {
		t.Errorf("navigate must not open a new tab, opened %v", session.opened)
	}
	if len(rep.Actions) != 1 || rep.Actions[0].TabID != "tab-1" {
		t.Errorf("expected the existing tab handle in the result, got %+v", rep.Actions)
	}
}

func TestDispatchNavigateWithoutURLIsReportedMiss(t *testing.T) {
	session := &fakeSession{active: &fakeTab{id: "tab-1", status: browser.StatusComplete}}
	d, surf := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionNavigate},
		{Action: plan.ActionThink, Description: "Moving on."},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("a malformed step must not fail the plan: %s", rep.Error)
	}
	if len(rep.Actions) != 0 {
		t.Errorf("expected no actions, got %+v", rep.Actions)
	}
	if toasts := surf.byType(feedback.MsgNotify); len(toasts) == 0 {
		t.Error("expected an error toast for the missing URL")
	}
}

func TestDispatchClickEmitsRipple(t *testing.T) {
	session := &fakeSession{page: &fakePage{html: fixturePage}}
	d, surf := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionClick, Data: &plan.StepData{Selector: "Sign in"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("dispatch failed: %s", rep.Error)
	}
	ripples := surf.byType(feedback.MsgRipple)
	if len(ripples) != 1 {
		t.Fatalf("expected one ripple, got %d", len(ripples))
	}
	if ripples[0].X != 42 || ripples[0].Y != 84 {
		t.Errorf("ripple landed at (%v, %v)", ripples[0].X, ripples[0].Y)
	}
}

func TestDispatchGuideAndPreview(t *testing.T) {
	render := &fakeRenderer{}
	session := &fakeSession{}
	d, _ := newTestDispatcher(session, render, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionGuide, Data: &plan.StepData{Message: "Click here to export.", Target: "#export"}},
		{Action: plan.ActionPreview, Data: &plan.StepData{HTML: "<h1>Draft</h1>"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("dispatch failed: %s", rep.Error)
	}
	if len(render.guides) != 1 || render.guides[0] != "Click here to export." {
		t.Errorf("guide not rendered: %v", render.guides)
	}
	if len(render.previews) != 1 {
		t.Errorf("preview not rendered: %v", render.previews)
	}
	if len(rep.Actions) != 2 {
		t.Errorf("expected guide and preview actions, got %+v", rep.Actions)
	}
}

func TestDispatchEmailOpensComposeTab(t *testing.T) {
	session := &fakeSession{}
	d, _ := newTestDispatcher(session, nil, nil)

	p := &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionEmail, Data: &plan.StepData{To: "team@example.com", Subject: "Q3 report"}},
	}}

	rep := d.Dispatch(context.Background(), "chat-1", p)
	d.Drain()

	if !rep.Success {
		t.Fatalf("dispatch failed: %s", rep.Error)
	}
	if len(session.opened) != 1 {
		t.Fatalf("expected one compose tab, got %v", session.opened)
	}
	if !strings.Contains(session.opened[0], "to=team%40example.com") {
		t.Errorf("compose URL missing recipient: %q", session.opened[0])
	}
	if len(rep.Actions) != 1 || rep.Actions[0].Description != "team@example.com" {
		t.Errorf("unexpected email result: %+v", rep.Actions)
	}
}

func TestDispatchEmitsActionAndReadinessEvents(t *testing.T) {
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	session := &fakeSession{}
	fb := feedback.NewSynchronizer()
	fb.EndDelay = 0
	domExec := dom.NewExecutor(fb)
	domExec.Settle = 0
	d := New(session, domExec, fb, nil, nil, observability.NewLogger())
	d.SetWaiter(browser.Waiter{Interval: time.Millisecond, Timeout: 10 * time.Millisecond})

	rep := d.Dispatch(context.Background(), "chat-1", &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionBrowse, Data: &plan.StepData{URL: "https://example.com"}},
	}})
	d.Drain()

	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}

	if !rep.Success {
		t.Fatalf("dispatch failed: %s", rep.Error)
	}
	if !strings.Contains(string(out), `"type":"action"`) {
		t.Error("no action event emitted for the browse step")
	}
	if !strings.Contains(string(out), `"type":"readiness"`) {
		t.Error("no readiness event emitted after the detached wait")
	}
}

func TestDispatchStartAndEndWrapThePlan(t *testing.T) {
	session := &fakeSession{}
	d, surf := newTestDispatcher(session, nil, nil)

	d.Dispatch(context.Background(), "chat-1", &plan.Plan{Steps: []plan.Step{
		{Action: plan.ActionThink, Description: "ok"},
	}})
	d.Drain()

	if starts := surf.byType(feedback.MsgStart); len(starts) != 1 {
		t.Errorf("expected one start signal, got %d", len(starts))
	}
	if ends := surf.byType(feedback.MsgEnd); len(ends) != 1 {
		t.Errorf("expected one end signal, got %d", len(ends))
	}
}
