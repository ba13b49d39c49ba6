package impl_rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var (
	ErrPublishNacked     = errors.New("rabbitmq: message was nacked by broker")
	ErrClosed            = errors.New("rabbitmq: broker is closed")
	ErrRecoveryExhausted = errors.New("rabbitmq: connection recovery exhausted")
)

// HeaderRetryCount carries how many times a message was requeued by a
// consumer.
const HeaderRetryCount = "x-retry-count"

const (
	defaultPrefetch           = 10
	defaultConfirmTimeout     = 5 * time.Second
	defaultMaxRedeliveries    = 10
	defaultRetryDelay         = time.Second
	defaultDeadLetterExchange = "transfers.dlx"
	defaultDeadLetterQueue    = "transfers.dlq"
	defaultReconnectAttempts  = 10
	defaultReconnectDelay     = time.Second

	maxRetryDelay     = 30 * time.Second
	maxReconnectDelay = 30 * time.Second
)

type Config struct {
	URL            string
	Prefetch       int
	ConfirmTimeout time.Duration

	// MaxRedeliveries is how often a consumer may requeue one message
	// before it goes to DeadLetterQueue.
	MaxRedeliveries    int
	RetryDelay         time.Duration
	DeadLetterExchange string
	DeadLetterQueue    string

	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefetch <= 0 {
		c.Prefetch = defaultPrefetch
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = defaultConfirmTimeout
	}
	if c.MaxRedeliveries <= 0 {
		c.MaxRedeliveries = defaultMaxRedeliveries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.DeadLetterExchange == "" {
		c.DeadLetterExchange = defaultDeadLetterExchange
	}
	if c.DeadLetterQueue == "" {
		c.DeadLetterQueue = defaultDeadLetterQueue
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = defaultReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	return c
}

type binding struct {
	ctx     context.Context
	queue   string
	handler messaging.Handler
}

// Broker publishes to and consumes from durable queues on the default
// exchange. Publishing waits for the broker confirm; consumers ack manually.
// A lost connection is redialed and every live consumer bound again; when
// that fails Failed is closed.
type Broker struct {
	cfg        Config
	logger     *zap.Logger
	propagator propagation.TextMapPropagator

	mu       sync.Mutex
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	declared map[string]bool
	bindings []binding
	closed   bool

	done       chan struct{}
	failed     chan struct{}
	failedOnce sync.Once
}

var (
	_ messaging.Publisher = (*Broker)(nil)
	_ messaging.Consumer  = (*Broker)(nil)
)

func Dial(cfg Config, logger *zap.Logger) (*Broker, error) {
	cfg = cfg.withDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	b := &Broker{
		cfg:        cfg,
		conn:       conn,
		logger:     logger,
		propagator: otel.GetTextMapPropagator(),
		declared:   map[string]bool{},
		done:       make(chan struct{}),
		failed:     make(chan struct{}),
	}

	b.mu.Lock()
	err = b.openPublishChannel()
	b.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	go b.watch(conn)

	return b, nil
}

// Failed is closed once the connection is lost for good.
func (b *Broker) Failed() <-chan struct{} {
	return b.failed
}

// openPublishChannel opens the confirm channel on the current connection
// and declares the dead-letter topology. Callers hold b.mu.
func (b *Broker) openPublishChannel() error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	if err := declareDeadLetter(ch, b.cfg.DeadLetterExchange, b.cfg.DeadLetterQueue); err != nil {
		_ = ch.Close()
		return err
	}

	b.pubCh = ch
	b.declared = map[string]bool{}

	return nil
}

func (b *Broker) watch(conn *amqp.Connection) {
	amqpErr, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}

	if ok && amqpErr != nil {
		b.logger.Error("rabbitmq connection closed", zap.String("reason", amqpErr.Reason), zap.Int("code", amqpErr.Code))
	} else {
		b.logger.Error("rabbitmq connection closed")
	}

	if err := b.reconnect(); err != nil {
		if errors.Is(err, ErrClosed) {
			return
		}
		b.logger.Error("rabbitmq connection could not be recovered", zap.Error(err))
		b.failedOnce.Do(func() { close(b.failed) })
	}
}

func (b *Broker) reconnect() error {
	delay := b.cfg.ReconnectDelay

	var lastErr error
	for attempt := 1; attempt <= b.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-b.done:
			return ErrClosed
		case <-time.After(delay):
		}

		conn, err := amqp.Dial(b.cfg.URL)
		if err == nil {
			err = b.adopt(conn)
		}
		if err == nil {
			b.logger.Info("rabbitmq connection recovered", zap.Int("attempt", attempt))
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}

		lastErr = err
		b.logger.Warn("rabbitmq reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		delay = min(delay*2, maxReconnectDelay)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRecoveryExhausted, b.cfg.ReconnectAttempts, lastErr)
}

// adopt makes conn the live connection and binds the consumers again.
func (b *Broker) adopt(conn *amqp.Connection) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}

	previous := b.conn
	b.conn = conn
	if err := b.openPublishChannel(); err != nil {
		b.conn = previous
		b.mu.Unlock()
		_ = conn.Close()
		return err
	}
	live := slices.DeleteFunc(slices.Clone(b.bindings), func(c binding) bool { return c.ctx.Err() != nil })
	b.bindings = live
	b.mu.Unlock()

	for _, c := range live {
		if err := b.subscribe(c); err != nil {
			_ = conn.Close()
			return err
		}
	}

	go b.watch(conn)

	return nil
}

// Publish declares queue on first use, injects the trace context into the
// headers and blocks until the broker confirms the message.
func (b *Broker) Publish(ctx context.Context, queue string, payload []byte, headers map[string]string) error {
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}

	carrier := propagation.MapCarrier{}
	b.propagator.Inject(ctx, carrier)
	for k, v := range carrier {
		table[k] = v
	}

	return b.publishConfirmed(ctx, queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         payload,
	})
}

func (b *Broker) publishConfirmed(ctx context.Context, queue string, msg amqp.Publishing) error {
	confirmation, err := b.publish(ctx, queue, msg)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.cfg.ConfirmTimeout)
	defer cancel()

	acked, err := confirmation.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("wait confirm on %s: %w", queue, err)
	}

	if !acked {
		return fmt.Errorf("%w: queue=%s", ErrPublishNacked, queue)
	}

	return nil
}

func (b *Broker) publish(ctx context.Context, queue string, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	if b.pubCh == nil || b.pubCh.IsClosed() {
		if err := b.openPublishChannel(); err != nil {
			return nil, err
		}
	}

	if !b.declared[queue] {
		if _, err := declareQueue(b.pubCh, queue, b.queueArgs(queue)); err != nil {
			return nil, err
		}
		b.declared[queue] = true
	}

	confirmation, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", queue, err)
	}

	return confirmation, nil
}

// Consume opens a dedicated channel for queue and hands every delivery to
// handler on its own goroutine. The channel closes when ctx is done and
// the handlers it started have settled.
func (b *Broker) Consume(ctx context.Context, queue string, handler messaging.Handler) error {
	c := binding{ctx: ctx, queue: queue, handler: handler}

	if err := b.subscribe(c); err != nil {
		return err
	}

	b.mu.Lock()
	b.bindings = append(b.bindings, c)
	b.mu.Unlock()

	return nil
}

func (b *Broker) subscribe(c binding) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	conn := b.conn
	b.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}

	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set qos on %s: %w", c.queue, err)
	}

	if _, err := declareQueue(ch, c.queue, b.queueArgs(c.queue)); err != nil {
		_ = ch.Close()
		return err
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	go b.serve(c, conn, ch, deliveries)

	return nil
}

func (b *Broker) serve(c binding, conn *amqp.Connection, ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	log := b.logger.With(zap.String("queue", c.queue))

	var handlers sync.WaitGroup
	defer func() {
		handlers.Wait()
		_ = ch.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			log.Info("consumer stopped")
			return
		case d, ok := <-deliveries:
			if !ok {
				if !conn.IsClosed() && c.ctx.Err() == nil {
					// only the channel died; the connection watcher does not see it
					log.Warn("delivery channel closed, subscribing again")
					go b.resubscribe(c, conn, log)
				}
				return
			}

			attempt := retryCount(d.Headers)
			msg := messaging.Message{
				Queue:       c.queue,
				MessageID:   d.MessageId,
				Payload:     d.Body,
				Headers:     stringHeaders(d.Headers),
				Redelivered: d.Redelivered || attempt > 0,
				Attempt:     attempt,
			}

			handlers.Add(1)
			go func() {
				defer handlers.Done()
				c.handler(c.ctx, msg, b.settle(c.ctx, c.queue, d, attempt, log))
			}()
		}
	}
}

// resubscribe binds c again on conn unless a reconnect has replaced it in
// the meantime, in which case the reconnect already did.
func (b *Broker) resubscribe(c binding, conn *amqp.Connection, log *zap.Logger) {
	select {
	case <-b.done:
		return
	case <-c.ctx.Done():
		return
	case <-time.After(b.cfg.ReconnectDelay):
	}

	b.mu.Lock()
	current := b.conn
	b.mu.Unlock()
	if current != conn || conn.IsClosed() {
		return
	}

	if err := b.subscribe(c); err != nil {
		log.Error("failed to subscribe again", zap.Error(err))
	}
}

func (b *Broker) settle(ctx context.Context, queue string, d amqp.Delivery, attempt int, log *zap.Logger) messaging.Done {
	var once sync.Once

	return func(o messaging.Outcome) {
		once.Do(func() {
			if o == messaging.OutcomeRequeue {
				b.retry(ctx, queue, d, attempt, log)
				return
			}

			if err := d.Ack(false); err != nil {
				log.Error("failed to ack delivery", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
			}
		})
	}
}

// retry puts a copy of d back on queue with the retry counter raised, after
// a delay growing with the attempt. Past MaxRedeliveries the delivery is
// rejected so the queue dead-letters it.
func (b *Broker) retry(ctx context.Context, queue string, d amqp.Delivery, attempt int, log *zap.Logger) {
	next := attempt + 1
	log = log.With(zap.String("message_id", d.MessageId), zap.Int("attempt", next))

	if next > b.cfg.MaxRedeliveries {
		log.Error("redelivery limit reached, dead-lettering message")
		if err := d.Nack(false, false); err != nil {
			log.Error("failed to reject delivery", zap.Error(err))
		}
		return
	}

	timer := time.NewTimer(retryDelay(b.cfg.RetryDelay, next))
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}

	if ctx.Err() != nil {
		// stopping: hand the message back untouched
		if err := d.Nack(false, true); err != nil {
			log.Error("failed to requeue delivery", zap.Error(err))
		}
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderRetryCount] = int32(next)

	err := b.publishConfirmed(ctx, queue, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		log.Warn("failed to republish for retry, requeueing", zap.Error(err))
		if err := d.Nack(false, true); err != nil {
			log.Error("failed to requeue delivery", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack retried delivery", zap.Error(err))
	}
}

func (b *Broker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.conn.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)

	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}

	return b.conn.Close()
}

// queueArgs dead-letters rejected messages of every work queue. The
// dead-letter queue itself has none.
func (b *Broker) queueArgs(queue string) amqp.Table {
	if queue == b.cfg.DeadLetterQueue {
		return nil
	}
	return amqp.Table{"x-dead-letter-exchange": b.cfg.DeadLetterExchange}
}

func declareQueue(ch *amqp.Channel, queue string, args amqp.Table) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(queue, true, false, false, false, args)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return q, nil
}

func declareDeadLetter(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange %s: %w", exchange, err)
	}

	if _, err := declareQueue(ch, queue, nil); err != nil {
		return err
	}

	if err := ch.QueueBind(queue, "#", exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queue, exchange, err)
	}

	return nil
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return min(base*time.Duration(attempt), maxRetryDelay)
}

// retryCount reads HeaderRetryCount in whichever integer width the broker
// decoded it to.
func retryCount(table amqp.Table) int {
	switch v := table[HeaderRetryCount].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}

// stringHeaders keeps the string-valued AMQP headers, which is where the
// correlation id and trace context travel.
func stringHeaders(table amqp.Table) map[string]string {
	out := make(map[string]string, len(table))
	for k, v := range table {
		switch val := v.(type) {
		case string:
			out[k] = val
		case []byte:
			out[k] = string(val)
		}
	}
	return out
}
