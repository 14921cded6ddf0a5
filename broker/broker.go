// Package broker provides the publish/consume contract between the
// user-owning service and the notification-owning service: fire-and-forget
// publishes to named channels with an asynchronous completion outcome, and
// channel subscriptions that dispatch to handler functions.
//
// Delivery is assumed at-least-once: a message may reach a consumer more than
// once, so handlers must tolerate duplicates.
package broker

import (
	"context"
	"fmt"
)

// Publisher submits a message to a named channel. The returned Outcome
// completes once the broker acknowledges (or fails to acknowledge) the send;
// the caller never blocks on the acknowledgment.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) *Outcome
}

// Handler processes one delivered message. Returning an error only logs; the
// transport does not redeliver on handler failure.
type Handler func(ctx context.Context, payload []byte) error

// Subscriber binds a handler to a named channel. The subscription stays live
// until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler Handler) error
}

// Logger is the minimal logging surface the transports need
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] BROKER "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] BROKER "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] BROKER "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] BROKER "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
