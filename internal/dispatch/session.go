package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/lulo-labs/lulo/internal/browser"
)

// driverSession adapts the chromedp driver to the dispatcher's
// session surface.
type driverSession struct {
	drv *browser.Driver
}

// NewDriverSession wraps a driver for dispatching.
func NewDriverSession(drv *browser.Driver) Session {
	return &driverSession{drv: drv}
}

func (s *driverSession) OpenTab(ctx context.Context, url string) (Tab, error) {
	tab, err := s.drv.OpenTab(ctx, url)
	if tab == nil {
		return nil, err
	}
	return tab, err
}

func (s *driverSession) Navigate(ctx context.Context, tab Tab, url string) error {
	bt, ok := tab.(*browser.Tab)
	if !ok {
		return fmt.Errorf("foreign tab handle %q", tab.TabID())
	}
	res := s.drv.Navigate(ctx, bt, url)
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

func (s *driverSession) ActiveTab() Tab {
	tab := s.drv.ActiveTab()
	if tab == nil {
		return nil
	}
	return tab
}

func (s *driverSession) ActivePage() Page {
	tab := s.drv.ActiveTab()
	if tab == nil {
		return nil
	}
	return tab
}
