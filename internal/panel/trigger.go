package panel

import (
	"context"
	"sync/atomic"
	"time"
)

// Trigger is a single-producer/single-consumer "step due" notification.
// Fires that arrive before the consumer catches up are coalesced: only
// "at least one trigger occurred" is preserved, not a count.
type Trigger struct {
	c         chan struct{}
	coalesced atomic.Uint64
}

// NewTrigger creates an idle trigger.
func NewTrigger() *Trigger {
	return &Trigger{c: make(chan struct{}, 1)}
}

// Fire marks a step as due. It never blocks.
func (t *Trigger) Fire() {
	select {
	case t.c <- struct{}{}:
	default:
		t.coalesced.Add(1)
	}
}

// C returns the channel the processing loop waits on.
func (t *Trigger) C() <-chan struct{} { return t.c }

// Coalesced returns how many fires were merged into an already pending one.
func (t *Trigger) Coalesced() uint64 { return t.coalesced.Load() }

// Clock fires t twice per period (once per half-cycle) until ctx is done.
func Clock(ctx context.Context, period time.Duration, t *Trigger) {
	half := period / 2
	if half <= 0 {
		half = time.Microsecond
	}
	ticker := time.NewTicker(half)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Fire()
		}
	}
}
