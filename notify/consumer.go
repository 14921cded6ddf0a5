// Package notify is the notification-service side of the activation
// workflow: two handlers bound to named channels, one turning activation
// events into emails, one logging completion markers. It never touches the
// user or token stores; the token value travels in the event payload.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	activation "github.com/goliatone/go-activation"
	"github.com/goliatone/go-activation/broker"
)

// Logger is the minimal logging surface the consumer needs
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] NOTIFY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] NOTIFY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] NOTIFY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] NOTIFY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// Consumer handles activation and completion events. Handlers are safe to
// invoke more than once for the same message: a duplicate activation event
// sends a duplicate email unless token dedupe is enabled.
type Consumer struct {
	mailer Mailer
	logger Logger

	mu     sync.Mutex
	seen   map[string]struct{}
	dedupe bool
}

// Option customizes a Consumer.
type Option func(*Consumer)

// WithLogger overrides the logger.
func WithLogger(logger Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSeenTokens enables in-memory dedupe on the token string, so redelivered
// activation events do not produce a second email. The set grows unbounded;
// deployments with long uptimes should prefer an idempotent mail transport.
func WithSeenTokens() Option {
	return func(c *Consumer) {
		c.dedupe = true
		c.seen = map[string]struct{}{}
	}
}

// New creates a Consumer delivering through mailer.
func New(mailer Mailer, opts ...Option) *Consumer {
	c := &Consumer{
		mailer: mailer,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// OnActivationEvent decodes the event and triggers the activation email.
func (c *Consumer) OnActivationEvent(ctx context.Context, payload []byte) error {
	var evt activation.ActivationEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("notify: undecodable activation event: %w", err)
	}

	if c.alreadySeen(evt.Token) {
		c.logger.Debug("skipping duplicate activation event for %s", evt.Email)
		return nil
	}

	c.logger.Info("received activation event for %s (%s)", evt.Email, evt.Username)

	if err := c.mailer.SendActivationMail(ctx, ActivationMail{
		To:    evt.Email,
		Name:  evt.Username,
		Token: evt.Token,
	}); err != nil {
		return fmt.Errorf("notify: activation mail for %s: %w", evt.Email, err)
	}

	c.markSeen(evt.Token)
	return nil
}

// OnCompletionEvent logs the completion marker. Audit only, no correctness
// dependency.
func (c *Consumer) OnCompletionEvent(_ context.Context, payload []byte) error {
	var evt activation.CompletionEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("notify: undecodable completion event: %w", err)
	}

	c.logger.Info("received completion event: %s", evt.Marker)
	return nil
}

// Bind subscribes both handlers against their channels.
func (c *Consumer) Bind(ctx context.Context, sub broker.Subscriber) error {
	if err := sub.Subscribe(ctx, activation.ActivationChannel, c.OnActivationEvent); err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", activation.ActivationChannel, err)
	}
	if err := sub.Subscribe(ctx, activation.CompletionChannel, c.OnCompletionEvent); err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", activation.CompletionChannel, err)
	}
	return nil
}

func (c *Consumer) alreadySeen(token string) bool {
	if !c.dedupe || token == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[token]
	return ok
}

func (c *Consumer) markSeen(token string) {
	if !c.dedupe || token == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[token] = struct{}{}
}
