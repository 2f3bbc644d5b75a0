package app

import (
	"context"
	"time"
)

// Defaults applied when the corresponding HTTP config fields are unset.
const (
	defaultSlots         = 1
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// admission bounds concurrent chat calls. A call first reserves a queue slot,
// then one of the generation slots. Both waits give up after maxWait.
type admission struct {
	queueCh chan struct{}
	genCh   chan struct{}
	maxWait time.Duration
}

func newAdmission(slots, depth int, maxWait time.Duration) *admission {
	if slots <= 0 {
		slots = defaultSlots
	}
	if depth <= 0 {
		depth = defaultMaxQueueDepth
	}
	if depth < slots {
		depth = slots
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &admission{
		queueCh: make(chan struct{}, depth),
		genCh:   make(chan struct{}, slots),
		maxWait: maxWait,
	}
}

// begin returns a release func to be deferred.
func (a *admission) begin(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case a.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, ErrTooBusy("queue_full")
	}

	acquired := false
	defer func() {
		if !acquired {
			<-a.queueCh
		}
	}()
	select {
	case a.genCh <- struct{}{}:
		acquired = true
		return func() { <-a.genCh; <-a.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, ErrTooBusy("no_slot")
	}
}

// queued reports calls holding a queue slot, running ones included.
func (a *admission) queued() int { return len(a.queueCh) }

// inflight reports calls holding a generation slot.
func (a *admission) inflight() int { return len(a.genCh) }
