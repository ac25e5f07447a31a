package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/lulo-labs/lulo/internal/browser"
	"github.com/lulo-labs/lulo/internal/dom"
	"github.com/lulo-labs/lulo/internal/feedback"
	"github.com/lulo-labs/lulo/internal/governance"
	"github.com/lulo-labs/lulo/internal/observability"
	"github.com/lulo-labs/lulo/internal/plan"
)

// Tab is the dispatcher's view of a tab handle.
type Tab interface {
	TabID() string
	CurrentURL() string
	Status(ctx context.Context) browser.Status
}

// Page is the live-document surface of the active tab.
type Page interface {
	dom.Page
	Rect(ctx context.Context, sel string) (x, y float64, err error)
}

// Session is the browser surface the dispatcher drives.
type Session interface {
	OpenTab(ctx context.Context, url string) (Tab, error)
	Navigate(ctx context.Context, tab Tab, url string) error
	ActiveTab() Tab
	ActivePage() Page
}

// Renderer shows user-facing guide and preview content in the page.
type Renderer interface {
	Guide(ctx context.Context, message, target string) error
	Preview(ctx context.Context, html, css, js string) error
}

type handler func(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error)

// Dispatcher walks a plan step by step, mapping each action to its
// handler. Click, type, guide and preview are awaited because later
// steps may depend on their effect; the readiness-then-feedback chain
// after browse, email, search and navigate is detached and never
// stalls the plan. A single failing step never aborts the plan.
type Dispatcher struct {
	mu      sync.Mutex
	busy    bool
	session Session
	dom     *dom.Executor
	fb      *feedback.Synchronizer
	render  Renderer
	policy  governance.PolicyEngine
	logger  *observability.Logger
	waiter  browser.Waiter
	route   map[plan.Action]handler
}

func New(session Session, domExec *dom.Executor, fb *feedback.Synchronizer, render Renderer, policy governance.PolicyEngine, logger *observability.Logger) *Dispatcher {
	d := &Dispatcher{
		session: session,
		dom:     domExec,
		fb:      fb,
		render:  render,
		policy:  policy,
		logger:  logger,
		waiter:  browser.NewWaiter(),
	}
	d.route = map[plan.Action]handler{
		plan.ActionNavigate: d.handleNavigate,
		plan.ActionBrowse:   d.handleBrowse,
		plan.ActionClick:    d.handleClick,
		plan.ActionType:     d.handleType,
		plan.ActionExtract:  d.handleExtract,
		plan.ActionEmail:    d.handleEmail,
		plan.ActionSearch:   d.handleSearch,
		plan.ActionGuide:    d.handleGuide,
		plan.ActionPreview:  d.handlePreview,
		plan.ActionThink:    d.handleThink,
	}
	return d
}

// SetWaiter overrides the readiness waiter, mainly for tests.
func (d *Dispatcher) SetWaiter(w browser.Waiter) {
	d.waiter = w
}

// Drain blocks until all detached feedback work has finished.
func (d *Dispatcher) Drain() {
	d.fb.Drain()
}

// Dispatch runs every step of p in order and builds the report.
// Overlapping dispatches against the same session are rejected; a
// plan, once started, always runs through its whole step list.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID string, p *plan.Plan) plan.Report {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return plan.Report{Success: false, Error: "another plan is already running against this browser session"}
	}
	d.busy = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
	}()

	if d.logger != nil {
		d.logger.LogPlan(chatID, "", len(p.Steps))
	}
	d.fb.Start(ctx)

	var results []plan.ExecutionResult
	for _, step := range p.Steps {
		if d.logger != nil {
			d.logger.LogStep(chatID, "", string(step.Action), step.Description)
		}
		res, err := d.runStep(ctx, chatID, step)
		if err != nil {
			// The step is lost, the plan is not.
			if d.logger != nil {
				d.logger.LogStepError(chatID, "", string(step.Action), err)
			}
			log.Printf("step %s failed: %v", step.Action, err)
			continue
		}
		if res != nil {
			if d.logger != nil {
				d.logger.LogAction(chatID, "", res.Type, res.Description, res.TabID)
			}
			results = append(results, *res)
		}
	}

	d.fb.EndAfterDelay(ctx)

	return plan.Report{
		Success: true,
		Reply:   plan.BuildReply(p.Steps),
		Actions: results,
	}
}

func (d *Dispatcher) runStep(ctx context.Context, chatID string, step plan.Step) (res *plan.ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("step panicked: %v", r)
		}
	}()

	h, known := d.route[step.Action]
	if !known {
		// Forward compatibility: an unrecognized action contributes
		// its description to the reply and nothing else.
		return nil, nil
	}
	return h(ctx, chatID, step)
}

// allowed consults the policy engine. Denial turns the step into a
// reported no-op rather than a failure.
func (d *Dispatcher) allowed(ctx context.Context, chatID string, step plan.Step, url, target string) bool {
	if d.policy == nil {
		return true
	}
	verdict, err := d.policy.Evaluate(ctx, governance.Request{
		Action: string(step.Action),
		URL:    url,
		Target: target,
		ChatID: chatID,
	})
	if err != nil {
		log.Printf("policy evaluation failed, allowing step: %v", err)
		return true
	}
	if verdict.Effect == governance.EffectDeny {
		if d.logger != nil {
			d.logger.LogPolicyCheck(chatID, "", string(step.Action), string(verdict.Effect), verdict.Reason)
		}
		d.fb.Notify(ctx, "error", verdict.Reason)
		return false
	}
	return true
}

// detachReadiness runs the wait-then-feedback sequence for a freshly
// opened tab on a tracked background task. Its delay or failure never
// reaches the plan.
func (d *Dispatcher) detachReadiness(chatID string, tab Tab) {
	bg := context.Background()
	d.fb.Go(func() {
		d.waiter.WaitUntilReady(bg, tab)
		if d.logger != nil {
			d.logger.LogReadiness(chatID, "", tab.TabID(), string(tab.Status(bg)))
		}
		d.fb.Start(bg)
		d.fb.EndAfterDelay(bg)
	})
}
