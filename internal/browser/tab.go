package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// Status is the externally owned readiness state of a tab.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusComplete Status = "complete"
	StatusGone     Status = "gone"
)

// Tab is an opaque handle to one browser tab. The driver creates tabs;
// everything else only observes them.
type Tab struct {
	ID     string
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

// Status reports the tab's current readiness. A tab whose context has
// been torn down, or that can no longer be queried, is gone; there is
// nothing left to wait for.
func (t *Tab) Status(ctx context.Context) Status {
	select {
	case <-t.ctx.Done():
		return StatusGone
	default:
	}

	checkCtx, cancel := context.WithTimeout(t.ctx, 2*time.Second)
	defer cancel()

	var state string
	if err := chromedp.Run(checkCtx, chromedp.Evaluate("document.readyState", &state)); err != nil {
		return StatusGone
	}
	if state == "complete" {
		return StatusComplete
	}
	return StatusLoading
}

// HTML returns the full serialized document of the tab.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := t.run(ctx)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	return html, err
}

// ScrollIntoView centers the element matched by sel in the viewport.
func (t *Tab) ScrollIntoView(ctx context.Context, sel string) error {
	runCtx, cancel := t.run(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ScrollIntoView(sel, chromedp.ByQuery))
}

// Click activates the element matched by sel.
func (t *Tab) Click(ctx context.Context, sel string) error {
	runCtx, cancel := t.run(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Click(sel, chromedp.ByQuery))
}

// SetValue focuses the element matched by sel, sets its value and
// dispatches synthetic "input" and "change" events. Setting the value
// alone is not enough: reactive pages only observe the mutation
// through those events.
func (t *Tab) SetValue(ctx context.Context, sel, value string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return false; }
		el.focus();
		el.value = %q;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, sel, value)

	runCtx, cancel := t.run(ctx)
	defer cancel()

	var ok bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element matches %q", sel)
	}
	return nil
}

// Text returns the visible text of the element matched by sel.
func (t *Tab) Text(ctx context.Context, sel string) (string, error) {
	runCtx, cancel := t.run(ctx)
	defer cancel()

	var text string
	err := chromedp.Run(runCtx, chromedp.Text(sel, &text, chromedp.ByQuery))
	return strings.TrimSpace(text), err
}

// Eval runs a script in the tab, discarding its result.
func (t *Tab) Eval(ctx context.Context, js string) error {
	runCtx, cancel := t.run(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(js, nil))
}

// Location returns the tab's current URL and title.
func (t *Tab) Location(ctx context.Context) (url, title string, err error) {
	runCtx, cancel := t.run(ctx)
	defer cancel()

	err = chromedp.Run(runCtx,
		chromedp.Location(&url),
		chromedp.Title(&title),
	)
	return url, title, err
}

// Rect returns the viewport center of the element matched by sel.
func (t *Tab) Rect(ctx context.Context, sel string) (x, y float64, err error) {
	runCtx, cancel := t.run(ctx)
	defer cancel()

	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return null; }
		const r = el.getBoundingClientRect();
		return [r.left + r.width / 2, r.top + r.height / 2];
	})()`, sel)

	var center []float64
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &center)); err != nil {
		return 0, 0, err
	}
	if len(center) != 2 {
		return 0, 0, fmt.Errorf("no element matches %q", sel)
	}
	return center[0], center[1], nil
}

// TabID returns the handle's identifier.
func (t *Tab) TabID() string { return t.ID }

// CurrentURL returns the last URL the driver pointed this tab at.
func (t *Tab) CurrentURL() string { return t.URL }

// actionTimeout bounds every individual tab operation.
const actionTimeout = 60 * time.Second

// run derives an action context from the tab's lifetime, bounded by
// the caller's deadline when that is sooner.
func (t *Tab) run(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := actionTimeout
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < timeout {
			timeout = rem
		}
	}
	return context.WithTimeout(t.ctx, timeout)
}
