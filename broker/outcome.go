package broker

import (
	"context"
	"sync"
)

// Outcome is the asynchronous result of a publish. Continuations registered
// with Then run off the caller's goroutine once the broker acknowledges or
// fails the send; transports complete the outcome from their executor pool so
// continuations never run on the originating request path.
type Outcome struct {
	mu        sync.Mutex
	done      chan struct{}
	err       error
	completed bool
	conts     []func(error)
}

// NewOutcome builds a pending outcome. Custom Publisher implementations
// complete it exactly once via Complete.
func NewOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// Complete resolves the outcome and runs registered continuations on the
// completing goroutine. Calls after the first are ignored.
func (o *Outcome) Complete(err error) {
	o.mu.Lock()
	if o.completed {
		o.mu.Unlock()
		return
	}
	o.completed = true
	o.err = err
	conts := o.conts
	o.conts = nil
	close(o.done)
	o.mu.Unlock()

	for _, fn := range conts {
		fn(err)
	}
}

// Then registers a continuation. If the outcome already completed the
// continuation is scheduled on a fresh goroutine, keeping the guarantee that
// it never runs synchronously on the registering goroutine's stack frame
// after completion raced ahead.
func (o *Outcome) Then(fn func(error)) *Outcome {
	if fn == nil {
		return o
	}

	o.mu.Lock()
	if !o.completed {
		o.conts = append(o.conts, fn)
		o.mu.Unlock()
		return o
	}
	err := o.err
	o.mu.Unlock()

	go fn(err)
	return o
}

// Wait blocks until the outcome resolves or ctx is done, returning the
// publish error or the context error. Intended for tests and shutdown paths;
// the workflow itself never waits.
func (o *Outcome) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
