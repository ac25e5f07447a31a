package feedback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lulo-labs/lulo/internal/browser"
)

// overlayScript installs the in-page listener once per document. The
// listener owns all presentation: glow border, status badge, click
// ripple, toasts and guide bubbles. Pages that forbid script
// injection simply never get an overlay, which is fine.
const overlayScript = `(() => {
  if (window.__luloInstalled) return;
  window.__luloInstalled = true;
  const IDLE = 'Lulo is browsing';
  function overlay() {
    let el = document.getElementById('lulo-overlay');
    if (!el) {
      el = document.createElement('div');
      el.id = 'lulo-overlay';
      el.style.cssText = 'position:fixed;inset:0;pointer-events:none;z-index:2147483646;border:4px solid #7c4dff;box-shadow:inset 0 0 24px rgba(124,77,255,.5);display:none;';
      const badge = document.createElement('div');
      badge.id = 'lulo-badge';
      badge.style.cssText = 'position:fixed;top:12px;right:12px;background:#7c4dff;color:#fff;font:12px sans-serif;padding:4px 10px;border-radius:12px;pointer-events:none;';
      badge.textContent = IDLE;
      el.appendChild(badge);
      document.documentElement.appendChild(el);
    }
    return el;
  }
  window.addEventListener('message', (ev) => {
    const m = ev.data;
    if (!m || typeof m.type !== 'string') return;
    switch (m.type) {
      case 'LULO_START':
        overlay().style.display = 'block';
        break;
      case 'LULO_END': {
        const el = document.getElementById('lulo-overlay');
        if (el) el.remove();
        break;
      }
      case 'LULO_STATUS': {
        overlay().style.display = 'block';
        const b = document.getElementById('lulo-badge');
        if (b) b.textContent = m.text || IDLE;
        break;
      }
      case 'LULO_RIPPLE': {
        const r = document.createElement('div');
        r.style.cssText = 'position:fixed;width:28px;height:28px;border:3px solid #7c4dff;border-radius:50%;pointer-events:none;z-index:2147483647;transform:translate(-50%,-50%);transition:opacity .5s,transform .5s;';
        r.style.left = m.x + 'px';
        r.style.top = m.y + 'px';
        document.documentElement.appendChild(r);
        requestAnimationFrame(() => {
          r.style.transform = 'translate(-50%,-50%) scale(2)';
          r.style.opacity = '0';
        });
        setTimeout(() => r.remove(), 500);
        break;
      }
      case 'LULO_NOTIFY': {
        const t = document.createElement('div');
        t.style.cssText = 'position:fixed;bottom:16px;right:16px;max-width:320px;background:' +
          (m.level === 'error' ? '#c62828' : '#2e7d32') +
          ';color:#fff;font:13px sans-serif;padding:10px 14px;border-radius:8px;z-index:2147483647;pointer-events:none;';
        t.textContent = m.text || '';
        document.documentElement.appendChild(t);
        setTimeout(() => t.remove(), 3000);
        break;
      }
      case 'GUIDE': {
        if (m.target) {
          const el = document.querySelector(m.target);
          if (el) {
            el.style.outline = '3px solid #7c4dff';
            setTimeout(() => { el.style.outline = ''; }, 8000);
          }
        }
        const g = document.createElement('div');
        g.style.cssText = 'position:fixed;top:24px;left:50%;transform:translateX(-50%);max-width:420px;background:#311b92;color:#fff;font:14px sans-serif;padding:12px 18px;border-radius:10px;z-index:2147483647;';
        g.textContent = m.text || '';
        document.documentElement.appendChild(g);
        setTimeout(() => g.remove(), 8000);
        break;
      }
    }
  });
})();`

// PageOverlay delivers feedback into the active tab by injecting the
// overlay listener and posting typed messages to it.
type PageOverlay struct {
	drv *browser.Driver
}

func NewPageOverlay(drv *browser.Driver) *PageOverlay {
	return &PageOverlay{drv: drv}
}

func (p *PageOverlay) Name() string { return "page" }

// Deliver posts msg into the active tab. Errors mean the overlay was
// unreachable; callers treat that as benign.
func (p *PageOverlay) Deliver(ctx context.Context, msg Message) error {
	tab := p.drv.ActiveTab()
	if tab == nil {
		return fmt.Errorf("no active tab")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	js := overlayScript + fmt.Sprintf(";window.postMessage(%s, '*');", payload)
	return tab.Eval(ctx, js)
}

// Guide highlights a target element and shows an instruction bubble.
// Unlike plain feedback this is a user-facing step effect, so the
// error is reported to the caller.
func (p *PageOverlay) Guide(ctx context.Context, message, target string) error {
	return p.Deliver(ctx, Message{Type: MsgGuide, Text: message, Target: target})
}

// Preview renders a generated document in a fresh tab.
func (p *PageOverlay) Preview(ctx context.Context, html, css, js string) error {
	tab, err := p.drv.OpenTab(ctx, "about:blank")
	if err != nil {
		return err
	}
	doc := fmt.Sprintf(
		"<!doctype html><html><head><style>%s</style></head><body>%s<script>%s</script></body></html>",
		css, html, js,
	)
	encoded, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return tab.Eval(ctx, fmt.Sprintf("document.open();document.write(%s);document.close();", encoded))
}
