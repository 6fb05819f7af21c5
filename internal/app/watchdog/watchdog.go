// Package watchdog detects heart-rate streams that went quiet.
package watchdog

import (
	"sync/atomic"
	"time"
)

// Watchdog reports one staleness per uninterrupted idle window. It is safe for
// one writer (Observe/Reset) and one reader (Check) on different goroutines.
type Watchdog struct {
	timeout time.Duration
	last    atomic.Int64 // unix nanos of the last accepted sample or reset
	fired   atomic.Bool
}

func New(timeout time.Duration) *Watchdog {
	return &Watchdog{timeout: timeout}
}

func (w *Watchdog) Timeout() time.Duration { return w.timeout }

// Reset starts a fresh window at t; called when a session begins streaming.
func (w *Watchdog) Reset(t time.Time) {
	w.last.Store(t.UnixNano())
	w.fired.Store(false)
}

// Observe records an accepted sample and closes any open idle window.
func (w *Watchdog) Observe(t time.Time) {
	w.Reset(t)
}

// Check returns true the first time now is more than the timeout past the
// last observation, and false until the next Observe after that.
func (w *Watchdog) Check(now time.Time) bool {
	last := w.last.Load()
	if last == 0 || w.timeout <= 0 {
		return false
	}
	if now.Sub(time.Unix(0, last)) <= w.timeout {
		return false
	}
	return w.fired.CompareAndSwap(false, true)
}

// LastAccepted is the time of the last Observe or Reset.
func (w *Watchdog) LastAccepted() time.Time {
	last := w.last.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}
