package util

import "sync"

// A CancelToken signals cooperative cancellation of a long-running
// asynchronous operation.
//
// Cancellation does not abort work that is already underway. Each step of the
// operation is expected to check Cancelled before performing side effects.
type CancelToken struct {
	lock      sync.Mutex
	cancelled bool
	done      chan struct{}
}

func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token as cancelled. Calling Cancel more than once is a
// no-op.
func (t *CancelToken) Cancel() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	close(t.done)
}

func (t *CancelToken) Cancelled() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.cancelled
}

// Done returns a channel that is closed when the token is cancelled.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}
