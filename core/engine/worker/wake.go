package worker

import (
	"sync"
	"time"
)

// wakeEvent is a level-free broadcast condition: Broadcast closes the
// current channel and installs a fresh one under the same lock, waking
// every goroutine waiting on the closed channel. Wait takes the current
// channel when it is called, so it only sees Broadcasts made after
// that; a Broadcast that ran before Wait was called is not observed.
// A caller that takes the channel before checking for work, and waits
// on that same channel afterwards (as Worker.run does), cannot lose a
// Broadcast that lands between its check and its wait.
type wakeEvent struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWakeEvent() *wakeEvent {
	return &wakeEvent{ch: make(chan struct{})}
}

// Wait blocks until Broadcast is called or timeout elapses, reporting
// which happened.
func (w *wakeEvent) Wait(timeout time.Duration) (woke bool) {
	w.mu.Lock()
	ch := w.ch
	w.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Broadcast wakes every goroutine currently blocked in Wait.
func (w *wakeEvent) Broadcast() {
	w.mu.Lock()
	old := w.ch
	w.ch = make(chan struct{})
	w.mu.Unlock()
	close(old)
}
