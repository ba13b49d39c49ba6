package impl_inmemory

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("inmemory: broker is closed")

const (
	defaultBuffer          = 1024
	defaultRedeliveryDelay = 50 * time.Millisecond
	defaultMaxRedeliveries = 10
)

type Option func(*Broker)

func WithRedeliveryDelay(d time.Duration) Option {
	return func(b *Broker) { b.redeliveryDelay = d }
}

// WithMaxRedeliveries caps how often a requeued message comes back. Past the
// cap it is dropped with an error log.
func WithMaxRedeliveries(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.maxRedeliveries = n
		}
	}
}

// Broker is a process-local message channel with the same ack/requeue
// contract as the AMQP adapter. Requeued messages come back flagged as
// redelivered after a delay that grows with each attempt.
type Broker struct {
	logger          *zap.Logger
	redeliveryDelay time.Duration
	maxRedeliveries int

	mu       sync.Mutex
	queues   map[string]chan messaging.Message
	inflight int
	idle     chan struct{}
	closed   bool
}

var (
	_ messaging.Publisher = (*Broker)(nil)
	_ messaging.Consumer  = (*Broker)(nil)
)

func NewBroker(logger *zap.Logger, opts ...Option) *Broker {
	idle := make(chan struct{})
	close(idle)

	b := &Broker{
		logger:          logger,
		redeliveryDelay: defaultRedeliveryDelay,
		maxRedeliveries: defaultMaxRedeliveries,
		queues:          map[string]chan messaging.Message{},
		idle:            idle,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Broker) queue(name string) chan messaging.Message {
	q, ok := b.queues[name]
	if !ok {
		q = make(chan messaging.Message, defaultBuffer)
		b.queues[name] = q
	}
	return q
}

func (b *Broker) Publish(ctx context.Context, queue string, payload []byte, headers map[string]string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	q := b.queue(queue)
	b.track(1)
	b.mu.Unlock()

	msg := messaging.Message{
		Queue:     queue,
		MessageID: uuid.NewString(),
		Payload:   append([]byte(nil), payload...),
		Headers:   maps.Clone(headers),
	}

	select {
	case q <- msg:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		b.track(-1)
		b.mu.Unlock()
		return ctx.Err()
	}
}

// Consume delivers messages of queue until ctx is cancelled. Each message
// is handled on its own goroutine.
func (b *Broker) Consume(ctx context.Context, queue string, handler messaging.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	q := b.queue(queue)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-q:
				go handler(ctx, msg, b.settle(q, msg))
			}
		}
	}()

	return nil
}

func (b *Broker) settle(q chan messaging.Message, msg messaging.Message) messaging.Done {
	var once sync.Once

	return func(o messaging.Outcome) {
		once.Do(func() {
			if o != messaging.OutcomeRequeue {
				b.mu.Lock()
				b.track(-1)
				b.mu.Unlock()
				return
			}

			if msg.Attempt >= b.maxRedeliveries {
				b.logger.Error("redelivery limit reached, dropping message",
					zap.String("queue", msg.Queue),
					zap.String("message_id", msg.MessageID),
					zap.Int("attempt", msg.Attempt),
				)
				b.mu.Lock()
				b.track(-1)
				b.mu.Unlock()
				return
			}

			msg.Redelivered = true
			msg.Attempt++
			time.AfterFunc(b.redeliveryDelay*time.Duration(msg.Attempt), func() {
				select {
				case q <- msg:
				default:
					b.logger.Error("queue full, dropping requeued message", zap.String("queue", msg.Queue))
					b.mu.Lock()
					b.track(-1)
					b.mu.Unlock()
				}
			})
		})
	}
}

// track adjusts the count of published but unsettled messages. Callers
// hold b.mu.
func (b *Broker) track(delta int) {
	if b.inflight == 0 && delta > 0 {
		b.idle = make(chan struct{})
	}

	b.inflight += delta

	if b.inflight == 0 {
		close(b.idle)
	}
}

// Drain blocks until every published message has been acked or ctx ends.
func (b *Broker) Drain(ctx context.Context) error {
	for {
		b.mu.Lock()
		idle := b.idle
		pending := b.inflight
		b.mu.Unlock()

		if pending == 0 {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
