package feedback

import (
	"context"
	"sync"
	"time"
)

// Surface renders feedback somewhere the user can see it: the page
// overlay, the terminal status line. A surface that is missing or not
// ready returns an error; the synchronizer swallows it, because an
// absent overlay is never a failure of the underlying action.
type Surface interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// DefaultEndDelay keeps the glow up briefly after an action sequence
// so rapid consecutive steps don't flicker.
const DefaultEndDelay = 2500 * time.Millisecond

// Synchronizer fans feedback signals out to every registered surface.
// All operations are fire-and-forget. Detached work is tracked so
// tests and shutdown can wait for it to drain.
type Synchronizer struct {
	mu       sync.Mutex
	surfaces []Surface
	tasks    sync.WaitGroup
	EndDelay time.Duration
}

func NewSynchronizer(surfaces ...Surface) *Synchronizer {
	return &Synchronizer{surfaces: surfaces, EndDelay: DefaultEndDelay}
}

// AddSurface registers an additional surface.
func (s *Synchronizer) AddSurface(surface Surface) {
	s.mu.Lock()
	s.surfaces = append(s.surfaces, surface)
	s.mu.Unlock()
}

// Start turns the automation-in-progress indicators on.
func (s *Synchronizer) Start(ctx context.Context) {
	s.broadcast(ctx, Message{Type: MsgStart})
}

// End turns the indicators off.
func (s *Synchronizer) End(ctx context.Context) {
	s.broadcast(ctx, Message{Type: MsgEnd})
}

// EndAfterDelay schedules End on a tracked background task after the
// configured linger delay.
func (s *Synchronizer) EndAfterDelay(ctx context.Context) {
	s.Go(func() {
		time.Sleep(s.EndDelay)
		s.End(ctx)
	})
}

// UpdateStatus replaces the status badge text. An empty text restores
// the idle text.
func (s *Synchronizer) UpdateStatus(ctx context.Context, text string) {
	s.broadcast(ctx, Message{Type: MsgStatus, Text: text})
}

// Ripple shows a transient click ring at viewport coordinates.
func (s *Synchronizer) Ripple(ctx context.Context, x, y float64) {
	s.broadcast(ctx, Message{Type: MsgRipple, X: x, Y: y})
}

// Notify shows a transient toast. Level is "success" or "error".
func (s *Synchronizer) Notify(ctx context.Context, level, text string) {
	s.broadcast(ctx, Message{Type: MsgNotify, Level: level, Text: text})
}

// Go runs f on a tracked background task.
func (s *Synchronizer) Go(f func()) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		f()
	}()
}

// Drain blocks until all tracked background work has finished.
func (s *Synchronizer) Drain() {
	s.tasks.Wait()
}

func (s *Synchronizer) broadcast(ctx context.Context, msg Message) {
	s.mu.Lock()
	surfaces := make([]Surface, len(s.surfaces))
	copy(surfaces, s.surfaces)
	s.mu.Unlock()

	for _, surface := range surfaces {
		// Delivery failure is expected in normal operation, e.g. a
		// tab that navigated away before the overlay was ready.
		_ = surface.Deliver(ctx, msg)
	}
}
