package resource

import (
	"context"
	"sync"
	"time"
)

// WakeReason reports how a Wait call was released.
type WakeReason int

const (
	// WokenBySignal means Signal was called during the round.
	WokenBySignal WakeReason = iota
	// WokenByTimeout means the round's timer expired first.
	WokenByTimeout
	// AlreadyAvailable means no wait was needed.
	AlreadyAvailable
)

func (r WakeReason) String() string {
	switch r {
	case WokenBySignal:
		return "signal"
	case WokenByTimeout:
		return "timeout"
	case AlreadyAvailable:
		return "available"
	default:
		return "unknown"
	}
}

// round is one wait/signal/timeout cycle. done is closed exactly once, after
// reason has been set, so waiters may read reason once done is closed.
type round struct {
	done   chan struct{}
	reason WakeReason
	timer  *time.Timer
}

// Notifier lets any number of observers block until the next Signal or until
// a timeout elapses, whichever comes first. Observers joining the same round
// are released together; the round's single timer is armed by the first
// observer and is not extended by later ones. A round whose observers all
// leave is discarded along with its timer.
//
// The zero value is ready to use.
type Notifier struct {
	mu      sync.Mutex
	seq     uint64 // current round number
	current *round // nil while the round is OPEN (no waiters)
	waiting int
}

// NewNotifier returns a Notifier at round 0.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Wait blocks until the current round resolves, then reports why. If ctx ends
// first Wait returns ctx.Err(); the round carries on for the remaining waiters.
func (n *Notifier) Wait(ctx context.Context, timeout time.Duration) (WakeReason, error) {
	n.mu.Lock()
	r := n.joinLocked(timeout)
	n.mu.Unlock()

	return n.await(ctx, r)
}

// joinLocked attaches the caller to the current round, arming the round's
// timer if the caller is the first waiter. Callers hold mu.
func (n *Notifier) joinLocked(timeout time.Duration) *round {
	if n.current == nil {
		r := &round{done: make(chan struct{})}
		r.timer = time.AfterFunc(timeout, func() {
			n.expire(r)
		})
		n.current = r
	}
	n.waiting++
	return n.current
}

func (n *Notifier) await(ctx context.Context, r *round) (WakeReason, error) {
	select {
	case <-r.done:
		return r.reason, nil
	case <-ctx.Done():
		n.mu.Lock()
		if n.current == r {
			n.waiting--
			// The last waiter left: drop the round without advancing seq so
			// the next waiter arms a fresh timer.
			if n.waiting == 0 {
				r.timer.Stop()
				n.current = nil
			}
		}
		n.mu.Unlock()
		return 0, ctx.Err()
	}
}

// Signal releases every waiter of the current round, cancels the round's
// timer and opens a new round. With no waiters it only advances the round.
func (n *Notifier) Signal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolveLocked(WokenBySignal)
}

// expire is the timer callback for round r. A timer that lost the race
// against Signal or an abandoned round finds another round and does nothing.
func (n *Notifier) expire(r *round) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != r {
		return
	}
	n.resolveLocked(WokenByTimeout)
}

func (n *Notifier) resolveLocked(reason WakeReason) {
	if r := n.current; r != nil {
		r.timer.Stop()
		r.reason = reason
		close(r.done)
	}
	n.current = nil
	n.waiting = 0
	n.seq++
}

// Round returns the current round number. It advances once per resolution.
func (n *Notifier) Round() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seq
}

// Waiting returns how many observers are blocked in the current round.
func (n *Notifier) Waiting() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.waiting
}
