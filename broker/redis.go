package broker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPublishTimeout = 5 * time.Second
	defaultExecutorSize   = 4
)

// executor is the pool the publish sends and their continuations run on,
// separate from any request goroutine.
type executor struct {
	tasks chan func()
	quit  chan struct{}
}

func newExecutor(size int) *executor {
	if size < 1 {
		size = 1
	}
	e := &executor{
		tasks: make(chan func(), size*8),
		quit:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go e.worker()
	}
	return e
}

func (e *executor) worker() {
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.quit:
			return
		}
	}
}

// submit runs the task on the pool, falling back to a fresh goroutine when
// the queue is saturated so a slow broker cannot back-pressure callers.
func (e *executor) submit(task func()) {
	select {
	case e.tasks <- task:
	default:
		go task()
	}
}

func (e *executor) close() {
	close(e.quit)
}

// RedisPublisher publishes to redis pub/sub channels.
type RedisPublisher struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	exec    *executor
	logger  Logger
}

// PublisherOption customizes a RedisPublisher.
type PublisherOption func(*RedisPublisher)

// WithPublisherPrefix namespaces every channel as "<prefix>.<channel>".
func WithPublisherPrefix(prefix string) PublisherOption {
	return func(p *RedisPublisher) {
		p.prefix = prefix
	}
}

// WithPublishTimeout bounds how long a single send may wait for the broker
// before the outcome resolves as a failure.
func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *RedisPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithExecutorSize sets the continuation pool size.
func WithExecutorSize(size int) PublisherOption {
	return func(p *RedisPublisher) {
		if size > 0 {
			p.exec = newExecutor(size)
		}
	}
}

// WithPublisherLogger overrides the logger.
func WithPublisherLogger(logger Logger) PublisherOption {
	return func(p *RedisPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client redis.UniversalClient, opts ...PublisherOption) *RedisPublisher {
	p := &RedisPublisher{
		client:  client,
		timeout: defaultPublishTimeout,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.exec == nil {
		p.exec = newExecutor(defaultExecutorSize)
	}
	return p
}

// Publish submits the payload and returns immediately. The send itself and
// the outcome's continuations run on the publisher's executor pool; failures
// (broker unreachable, timeout) surface only through the outcome.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) *Outcome {
	out := NewOutcome()
	name := p.channel(channel)

	p.exec.submit(func() {
		// deliberately detached from the request context: the caller has
		// already been answered by the time this runs
		sendCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		err := p.client.Publish(sendCtx, name, payload).Err()
		if err != nil {
			p.logger.Error("publish %s failed: %v", name, err)
		}
		out.Complete(err)
	})

	return out
}

// Close stops the executor pool. In-flight tasks finish; queued tasks may be
// dropped.
func (p *RedisPublisher) Close() {
	p.exec.close()
}

func (p *RedisPublisher) channel(tag string) string {
	if p.prefix == "" {
		return tag
	}
	return p.prefix + "." + tag
}

// RedisSubscriber consumes redis pub/sub channels and dispatches payloads to
// handlers.
type RedisSubscriber struct {
	client redis.UniversalClient
	prefix string
	logger Logger
}

// SubscriberOption customizes a RedisSubscriber.
type SubscriberOption func(*RedisSubscriber)

// WithSubscriberPrefix mirrors the publisher prefix.
func WithSubscriberPrefix(prefix string) SubscriberOption {
	return func(s *RedisSubscriber) {
		s.prefix = prefix
	}
}

// WithSubscriberLogger overrides the logger.
func WithSubscriberLogger(logger Logger) SubscriberOption {
	return func(s *RedisSubscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

var _ Subscriber = (*RedisSubscriber)(nil)

func NewRedisSubscriber(client redis.UniversalClient, opts ...SubscriberOption) *RedisSubscriber {
	s := &RedisSubscriber{
		client: client,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Subscribe confirms the subscription with the broker, then consumes messages
// on a background goroutine until ctx is cancelled. Handler errors are logged
// and the subscription keeps going.
func (s *RedisSubscriber) Subscribe(ctx context.Context, channel string, handler Handler) error {
	name := s.channel(channel)
	sub := s.client.Subscribe(ctx, name)

	// wait for the broker to confirm before reporting the binding live
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if err := handler(ctx, []byte(msg.Payload)); err != nil {
					s.logger.Error("handler for %s failed: %v", name, err)
				}
			}
		}
	}()

	return nil
}

func (s *RedisSubscriber) channel(tag string) string {
	if s.prefix == "" {
		return tag
	}
	return s.prefix + "." + tag
}
