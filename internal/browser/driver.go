package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Result is the uniform outcome of every public driver operation.
// Driver calls never panic or return Go errors past this boundary; a
// failed call is a value, not an exception.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(msg string) Result {
	return Result{Success: true, Message: msg}
}

func fail(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// Options configures a driver session.
type Options struct {
	Headless      bool
	NavTimeout    time.Duration
	ScreenshotDir string
}

// Driver owns one external Chrome process and the set of tabs opened
// in it. At most one session is active per driver instance; Launch
// replaces any prior session.
type Driver struct {
	mu            sync.Mutex
	opts          Options
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	tabs          map[string]*Tab
	active        *Tab
	nextTab       int
	status        func(text string)
}

func NewDriver(opts Options) *Driver {
	if opts.NavTimeout == 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "screenshots"
	}
	return &Driver{opts: opts, tabs: make(map[string]*Tab)}
}

// SetStatusFunc installs a best-effort callback invoked with overlay
// status text around every driver action. A nil func disables it.
func (d *Driver) SetStatusFunc(f func(text string)) {
	d.mu.Lock()
	d.status = f
	d.mu.Unlock()
}

func (d *Driver) setStatus(text string) {
	d.mu.Lock()
	f := d.status
	d.mu.Unlock()
	if f != nil {
		f(text)
	}
}

// Launch starts a fresh browser session, tearing down any prior one
// first.
func (d *Driver) Launch(ctx context.Context) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil {
		d.teardownLocked()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", d.opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx)

	if err := chromedp.Run(d.browserCtx); err != nil {
		d.teardownLocked()
		return fail(fmt.Errorf("failed to start browser: %v", err))
	}

	first := &Tab{ID: d.tabID(), ctx: d.browserCtx, cancel: d.browserCancel}
	d.tabs[first.ID] = first
	d.active = first

	return ok("browser session started")
}

// IsRunning reports whether a live session exists.
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx == nil {
		return false
	}
	select {
	case <-d.browserCtx.Done():
		return false
	default:
		return true
	}
}

// OpenTab opens a new tab at url and makes it the active tab. The
// returned handle is registered with the session; navigation is
// started but not awaited beyond the initial goto.
func (d *Driver) OpenTab(ctx context.Context, url string) (*Tab, error) {
	d.mu.Lock()
	if d.browserCtx == nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("no active browser session")
	}
	tabCtx, tabCancel := chromedp.NewContext(d.browserCtx)
	tab := &Tab{ID: d.tabID(), URL: url, ctx: tabCtx, cancel: tabCancel}
	d.tabs[tab.ID] = tab
	d.active = tab
	d.mu.Unlock()

	navCtx, cancel := context.WithTimeout(tabCtx, d.opts.NavTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		// The tab exists even when the initial load is slow or the
		// navigation times out; callers observe readiness separately.
		return tab, fmt.Errorf("open %s: %v", url, err)
	}
	return tab, nil
}

// Navigate points an existing tab at a new URL. A navigation timeout
// converts to a per-call error, never a torn-down session.
func (d *Driver) Navigate(ctx context.Context, tab *Tab, url string) Result {
	if tab == nil {
		return fail(fmt.Errorf("no target tab"))
	}

	d.setStatus("Navigating...")
	defer d.setStatus("")

	navCtx, cancel := context.WithTimeout(tab.ctx, d.opts.NavTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fail(fmt.Errorf("navigate to %s: %v", url, err))
	}
	tab.URL = url
	return ok(fmt.Sprintf("navigated to %s", url))
}

// ClickAt dispatches a raw mouse click at viewport coordinates on the
// active tab.
func (d *Driver) ClickAt(ctx context.Context, x, y float64) Result {
	tab := d.ActiveTab()
	if tab == nil {
		return fail(fmt.Errorf("no active tab"))
	}

	d.setStatus("Clicking...")
	defer d.setStatus("")

	runCtx, cancel := tab.run(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.MouseClickXY(x, y)); err != nil {
		return fail(fmt.Errorf("click at (%.0f, %.0f): %v", x, y, err))
	}
	return ok(fmt.Sprintf("clicked at (%.0f, %.0f)", x, y))
}

// TypeText sends text to the focused element on the active tab,
// keystroke by keystroke with the given delay between keys.
func (d *Driver) TypeText(ctx context.Context, text string, delay time.Duration) Result {
	tab := d.ActiveTab()
	if tab == nil {
		return fail(fmt.Errorf("no active tab"))
	}

	d.setStatus("Typing...")
	defer d.setStatus("")

	runCtx, cancel := tab.run(ctx)
	defer cancel()
	for _, r := range text {
		if err := chromedp.Run(runCtx, chromedp.KeyEvent(string(r))); err != nil {
			return fail(fmt.Errorf("type text: %v", err))
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return ok(fmt.Sprintf("typed %d characters", len(text)))
}

// Screenshot captures the active tab as a PNG data URL and drops a
// copy under the screenshot directory. Returns "" when capture fails.
func (d *Driver) Screenshot(ctx context.Context) string {
	tab := d.ActiveTab()
	if tab == nil {
		return ""
	}

	runCtx, cancel := tab.run(ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return ""
	}

	if err := os.MkdirAll(d.opts.ScreenshotDir, 0755); err == nil {
		name := fmt.Sprintf("screenshot_%d.png", time.Now().Unix())
		_ = os.WriteFile(filepath.Join(d.opts.ScreenshotDir, name), buf, 0644)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf)
}

// ActiveTab returns the most recently created or navigated tab, or
// nil when no session is live.
func (d *Driver) ActiveTab() *Tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Tabs returns the registered tab handles.
func (d *Driver) Tabs() []*Tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Tab, 0, len(d.tabs))
	for _, t := range d.tabs {
		out = append(out, t)
	}
	return out
}

// Close tears down the session. Callers that maintain an overlay must
// remove it before calling Close so no orphaned overlay survives the
// browser process.
func (d *Driver) Close() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardownLocked()
	return ok("browser session closed")
}

func (d *Driver) teardownLocked() {
	for id, t := range d.tabs {
		if t.cancel != nil {
			t.cancel()
		}
		delete(d.tabs, id)
	}
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.browserCtx = nil
	d.allocCtx = nil
	d.browserCancel = nil
	d.allocCancel = nil
	d.active = nil
}

func (d *Driver) tabID() string {
	d.nextTab++
	return fmt.Sprintf("tab-%d", d.nextTab)
}
