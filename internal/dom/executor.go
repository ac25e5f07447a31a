package dom

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is the live-document surface the executor drives. The browser
// tab implements it; tests substitute a fake.
type Page interface {
	HTML(ctx context.Context) (string, error)
	ScrollIntoView(ctx context.Context, sel string) error
	Click(ctx context.Context, sel string) error
	SetValue(ctx context.Context, sel, value string) error
	Text(ctx context.Context, sel string) (string, error)
}

// Notifier receives user-visible toast notifications. Delivery is
// fire-and-forget; implementations swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, level, text string)
}

// DefaultSettleDelay lets scroll and animation finish before an
// element is activated.
const DefaultSettleDelay = 300 * time.Millisecond

// Executor performs concrete effects against resolved elements:
// click, set-text-with-change-events, read-text. A failed resolution
// is terminal for the step, never for the plan.
type Executor struct {
	Settle time.Duration
	Notes  Notifier
}

func NewExecutor(notes Notifier) *Executor {
	return &Executor{Settle: DefaultSettleDelay, Notes: notes}
}

// ActionResult names what was acted on: Selector describes the
// element back to the caller, Path is the exact selector used to
// drive the live page.
type ActionResult struct {
	Selector string
	Path     string
}

// Click resolves target, scrolls it into view, waits for the settle
// delay and activates it.
func (e *Executor) Click(ctx context.Context, page Page, target string) (*ActionResult, error) {
	match, err := e.resolve(ctx, page, target, Resolve)
	if err != nil {
		return nil, err
	}

	if err := page.ScrollIntoView(ctx, match.Selector); err == nil && e.Settle > 0 {
		time.Sleep(e.Settle)
	}
	if err := page.Click(ctx, match.Selector); err != nil {
		e.notify(ctx, "error", fmt.Sprintf("Could not click %q: %v", target, err))
		return nil, err
	}

	e.notify(ctx, "success", "Clicked "+Describe(match.Selection))
	return &ActionResult{Selector: ReportSelector(match.Selection), Path: match.Selector}, nil
}

// Type resolves a text input for target (selector, then placeholder),
// scrolls to it and sets its value. The page surface dispatches the
// synthetic input and change events that reactive pages require.
func (e *Executor) Type(ctx context.Context, page Page, target, text string) (*ActionResult, error) {
	match, err := e.resolve(ctx, page, target, ResolveInput)
	if err != nil {
		return nil, err
	}

	_ = page.ScrollIntoView(ctx, match.Selector)
	if err := page.SetValue(ctx, match.Selector, text); err != nil {
		e.notify(ctx, "error", fmt.Sprintf("Could not type into %q: %v", target, err))
		return nil, err
	}

	e.notify(ctx, "success", "Typed into "+Describe(match.Selection))
	return &ActionResult{Selector: ReportSelector(match.Selection), Path: match.Selector}, nil
}

// ReadText resolves target and returns its visible text.
func (e *Executor) ReadText(ctx context.Context, page Page, target string) (string, error) {
	match, err := e.resolve(ctx, page, target, Resolve)
	if err != nil {
		return "", err
	}
	return page.Text(ctx, match.Selector)
}

type resolveFunc func(target string, doc *goquery.Document) *Match

func (e *Executor) resolve(ctx context.Context, page Page, target string, fn resolveFunc) (*Match, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		e.notify(ctx, "error", fmt.Sprintf("Could not read the page: %v", err))
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	match := fn(target, doc)
	if match == nil {
		e.notify(ctx, "error", fmt.Sprintf("Could not find %q on the page", target))
		return nil, fmt.Errorf("no element matches %q", target)
	}
	return match, nil
}

func (e *Executor) notify(ctx context.Context, level, text string) {
	if e.Notes != nil {
		e.Notes.Notify(ctx, level, text)
	}
}
