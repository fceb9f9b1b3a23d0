package geolocator

import (
	"sync"
	"time"
)

// timerGuard runs a callback exactly once after a delay. It backs the
// facade's own request timeouts; the platform-side timeout stays effectively
// unbounded.
type timerGuard struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	fired   bool
}

// newTimerGuard arms a guard that invokes fn once after d. A negative d is
// rejected with ErrInvalidArgument. A zero d is legal and expires
// immediately.
func newTimerGuard(d time.Duration, fn func()) (*timerGuard, error) {
	if d < 0 {
		return nil, ErrInvalidArgument
	}
	g := &timerGuard{}
	g.timer = time.AfterFunc(d, func() {
		g.mu.Lock()
		if g.stopped {
			g.mu.Unlock()
			return
		}
		g.fired = true
		g.mu.Unlock()
		fn()
	})
	return g, nil
}

// stop prevents the callback if it has not fired yet. It is safe to call
// repeatedly and after the guard has fired.
func (g *timerGuard) stop() {
	g.mu.Lock()
	if !g.stopped && !g.fired {
		g.stopped = true
		g.timer.Stop()
	}
	g.mu.Unlock()
}
