package sync

import (
	"context"
	stdsync "sync"
	"time"
)

// AutoSync debounces local mutations into background pushes. Each mutation
// resets a single timer; only the quiet period after the last one fires a
// push. The fire callback reads orchestrator state at fire time, so a sync
// that completed while the timer was pending is seen, not raced.
type AutoSync struct {
	o *Orchestrator

	mu      stdsync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewAutoSync builds the debouncer. Wire Notify as the ledger's change
// callback; nothing fires until the first notification.
func NewAutoSync(o *Orchestrator) *AutoSync {
	return &AutoSync{o: o}
}

// Notify records a local mutation. Changes that came from sync itself
// (fromSync) never arm the timer, otherwise applying a pull or a merge
// would immediately schedule a push of the data just received.
func (a *AutoSync) Notify(fromSync bool) {
	if fromSync || !a.o.opts.AutoSync {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.timer == nil {
		a.timer = time.AfterFunc(a.o.opts.DebounceDelay, a.fire)
		return
	}
	a.timer.Reset(a.o.opts.DebounceDelay)
}

func (a *AutoSync) fire() {
	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		return
	}
	if a.o.autoSuppressed() {
		a.o.log.Debug(context.Background(), "auto push suppressed, sync just finished")
		return
	}
	// Guard rejections inside Push are silent for automatic callers.
	_, _ = a.o.Push(context.Background(), true)
}

// Stop disarms the timer. Pending fires after Stop are dropped.
func (a *AutoSync) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
	}
}
