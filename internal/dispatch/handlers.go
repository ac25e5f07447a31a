package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/lulo-labs/lulo/internal/plan"
)

func (d *Dispatcher) handleNavigate(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.URL == "" {
		d.fb.Notify(ctx, "error", "Navigation step is missing a URL")
		return nil, fmt.Errorf("navigate step missing url")
	}
	tab := d.session.ActiveTab()
	if tab == nil {
		return nil, fmt.Errorf("no open tab to navigate")
	}
	if !d.allowed(ctx, chatID, step, step.Data.URL, "") {
		return nil, nil
	}

	d.fb.UpdateStatus(ctx, "Navigating to "+step.Data.URL)
	if err := d.session.Navigate(ctx, tab, step.Data.URL); err != nil {
		d.fb.UpdateStatus(ctx, "")
		d.fb.Notify(ctx, "error", fmt.Sprintf("Could not open %s", step.Data.URL))
		return nil, err
	}

	// Load completion only decides when the "navigating" badge goes
	// away; the plan moves on immediately.
	bg := context.Background()
	d.fb.Go(func() {
		d.waiter.WaitUntilReady(bg, tab)
		if d.logger != nil {
			d.logger.LogReadiness(chatID, "", tab.TabID(), string(tab.Status(bg)))
		}
		d.fb.UpdateStatus(bg, "")
	})

	return &plan.ExecutionResult{Type: "navigate", Description: step.Data.URL, TabID: tab.TabID()}, nil
}

func (d *Dispatcher) handleBrowse(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.URL == "" {
		d.fb.Notify(ctx, "error", "Browse step is missing a URL")
		return nil, fmt.Errorf("browse step missing url")
	}
	if !d.allowed(ctx, chatID, step, step.Data.URL, "") {
		return nil, nil
	}

	d.fb.UpdateStatus(ctx, "Opening "+step.Data.URL)
	tab, err := d.session.OpenTab(ctx, step.Data.URL)
	if tab == nil {
		return nil, err
	}
	if err != nil {
		// The tab exists; a slow first load is the waiter's problem.
		log.Printf("browse: %v", err)
	}
	d.detachReadiness(chatID, tab)

	return &plan.ExecutionResult{Type: "browse", Description: step.Data.URL, TabID: tab.TabID()}, nil
}

func (d *Dispatcher) handleClick(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.Selector == "" {
		d.fb.Notify(ctx, "error", "Click step is missing a target")
		return nil, fmt.Errorf("click step missing selector")
	}
	if !d.allowed(ctx, chatID, step, "", step.Data.Selector) {
		return nil, nil
	}
	page := d.session.ActivePage()
	if page == nil {
		return nil, fmt.Errorf("no active page to click in")
	}

	res, err := d.dom.Click(ctx, page, step.Data.Selector)
	if err != nil {
		return nil, err
	}
	if x, y, rerr := page.Rect(ctx, res.Path); rerr == nil {
		d.fb.Ripple(ctx, x, y)
	}

	return &plan.ExecutionResult{Type: "click", Description: res.Selector}, nil
}

func (d *Dispatcher) handleType(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.Selector == "" || step.Data.Text == "" {
		d.fb.Notify(ctx, "error", "Type step needs both a target and text")
		return nil, fmt.Errorf("type step missing selector or text")
	}
	if !d.allowed(ctx, chatID, step, "", step.Data.Selector) {
		return nil, nil
	}
	page := d.session.ActivePage()
	if page == nil {
		return nil, fmt.Errorf("no active page to type in")
	}

	res, err := d.dom.Type(ctx, page, step.Data.Selector, step.Data.Text)
	if err != nil {
		return nil, err
	}

	return &plan.ExecutionResult{Type: "type", Description: res.Selector}, nil
}

func (d *Dispatcher) handleExtract(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	page := d.session.ActivePage()
	if page == nil {
		return nil, fmt.Errorf("no active page to extract from")
	}

	if step.Data != nil && step.Data.Selector != "" {
		text, err := d.dom.ReadText(ctx, page, step.Data.Selector)
		if err != nil {
			return nil, err
		}
		return &plan.ExecutionResult{Type: "extract", Description: truncate(text, maxExtractLen)}, nil
	}

	baseURL := ""
	if tab := d.session.ActiveTab(); tab != nil {
		baseURL = tab.CurrentURL()
	}
	content, err := extractReadable(ctx, page, baseURL)
	if err != nil {
		d.fb.Notify(ctx, "error", "Could not extract the page content")
		return nil, err
	}
	return &plan.ExecutionResult{Type: "extract", Description: content}, nil
}

func (d *Dispatcher) handleEmail(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.To == "" {
		d.fb.Notify(ctx, "error", "Email step is missing a recipient")
		return nil, fmt.Errorf("email step missing recipient")
	}
	composeURL := emailComposeURL(step.Data.To, step.Data.Subject, step.Data.Body)
	if !d.allowed(ctx, chatID, step, composeURL, "") {
		return nil, nil
	}

	d.fb.UpdateStatus(ctx, "Composing email to "+step.Data.To)
	tab, err := d.session.OpenTab(ctx, composeURL)
	if tab == nil {
		return nil, err
	}
	if err != nil {
		log.Printf("email: %v", err)
	}
	d.detachReadiness(chatID, tab)

	return &plan.ExecutionResult{Type: "email", Description: step.Data.To, TabID: tab.TabID()}, nil
}

func (d *Dispatcher) handleSearch(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.Query == "" {
		d.fb.Notify(ctx, "error", "Search step is missing a query")
		return nil, fmt.Errorf("search step missing query")
	}
	searchTabURL := searchURL(step.Data.Query)
	if !d.allowed(ctx, chatID, step, searchTabURL, "") {
		return nil, nil
	}

	d.fb.UpdateStatus(ctx, "Searching for "+step.Data.Query)
	tab, err := d.session.OpenTab(ctx, searchTabURL)
	if tab == nil {
		return nil, err
	}
	if err != nil {
		log.Printf("search: %v", err)
	}
	d.detachReadiness(chatID, tab)

	return &plan.ExecutionResult{Type: "search", Description: step.Data.Query, TabID: tab.TabID()}, nil
}

func (d *Dispatcher) handleGuide(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.Message == "" {
		return nil, fmt.Errorf("guide step missing message")
	}
	if d.render == nil {
		return nil, fmt.Errorf("no page surface for guide")
	}
	if err := d.render.Guide(ctx, step.Data.Message, step.Data.Target); err != nil {
		return nil, err
	}
	return &plan.ExecutionResult{Type: "guide", Description: step.Data.Message}, nil
}

func (d *Dispatcher) handlePreview(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	if step.Data == nil || step.Data.HTML == "" {
		return nil, fmt.Errorf("preview step missing html")
	}
	if d.render == nil {
		return nil, fmt.Errorf("no page surface for preview")
	}
	if err := d.render.Preview(ctx, step.Data.HTML, step.Data.CSS, step.Data.JS); err != nil {
		return nil, err
	}
	return &plan.ExecutionResult{Type: "preview"}, nil
}

func (d *Dispatcher) handleThink(ctx context.Context, chatID string, step plan.Step) (*plan.ExecutionResult, error) {
	// Pure narration: the description already went into the reply.
	return nil, nil
}
