package browser

import (
	"context"
	"log"
	"time"
)

// Readiness is the observable side of a tab for the waiter.
type Readiness interface {
	Status(ctx context.Context) Status
}

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultReadyTimeout = 15 * time.Second
)

// Waiter polls a tab until it is ready or the deadline passes. It is
// deliberately fail-open: a tab that is slow, gone, or unobservable
// must never stall the caller, so WaitUntilReady always returns.
type Waiter struct {
	Interval time.Duration
	Timeout  time.Duration
}

func NewWaiter() Waiter {
	return Waiter{Interval: DefaultPollInterval, Timeout: DefaultReadyTimeout}
}

// WaitUntilReady blocks until the tab reports complete, disappears,
// or the deadline elapses. It never returns an error; on timeout the
// caller proceeds optimistically.
func (w Waiter) WaitUntilReady(ctx context.Context, tab Readiness) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	// A tab that is already complete, or already gone, needs no wait.
	switch tab.Status(ctx) {
	case StatusComplete, StatusGone:
		return
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			log.Printf("Warning: tab not ready after %v, proceeding anyway", timeout)
			return
		case <-ticker.C:
			switch tab.Status(ctx) {
			case StatusComplete, StatusGone:
				return
			}
		}
	}
}
