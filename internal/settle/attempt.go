// Package settle provides a single-assignment result for callback-driven
// sign-in flows.
package settle

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is the rejection used when an attempt's timer expires.
var ErrTimeout = errors.New("sign-in timed out")

// Attempt is settled exactly once, by Resolve or Reject. Every later
// settlement is a no-op, so late provider callbacks cannot change the result.
type Attempt[T any] struct {
	mu      sync.Mutex
	settled bool
	value   T
	err     error
	timer   *time.Timer
	done    chan struct{}
}

// New creates an unsettled attempt.
func New[T any]() *Attempt[T] {
	return &Attempt[T]{done: make(chan struct{})}
}

// Resolve settles the attempt with v. It reports whether this call settled it.
func (a *Attempt[T]) Resolve(v T) bool {
	return a.settle(v, nil)
}

// Reject settles the attempt with err. It reports whether this call settled it.
func (a *Attempt[T]) Reject(err error) bool {
	var zero T
	return a.settle(zero, err)
}

func (a *Attempt[T]) settle(v T, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settled {
		return false
	}
	a.settled = true
	a.value = v
	a.err = err
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	close(a.done)
	return true
}

// Settled reports whether the attempt has a result.
func (a *Attempt[T]) Settled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settled
}

// Done is closed on settlement.
func (a *Attempt[T]) Done() <-chan struct{} {
	return a.done
}

// TimerActive reports whether a timeout is armed.
func (a *Attempt[T]) TimerActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// StartTimer arms a timeout. When d elapses before settlement the attempt
// is rejected with ErrTimeout, then onExpire runs. onExpire only runs when
// the timeout settled the attempt, so anything it triggers (such as a
// provider notifying a cancellation) cannot replace ErrTimeout.
// onExpire may be nil. Starting a timer on a settled attempt does nothing.
func (a *Attempt[T]) StartTimer(d time.Duration, onExpire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settled {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(d, func() {
		if a.Reject(ErrTimeout) && onExpire != nil {
			onExpire()
		}
	})
}

// Result returns the settled value and error. It must only be called
// after Done is closed.
func (a *Attempt[T]) Result() (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value, a.err
}

// Wait blocks until the attempt settles or ctx is done. When ctx ends
// first the attempt is rejected with ctx's error, so Wait always returns
// the attempt's single result.
func (a *Attempt[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-a.done:
	case <-ctx.Done():
		a.Reject(ctx.Err())
	}
	return a.Result()
}
