package impl_dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging"
	port_operation "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/operation"
	port_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/transfer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/dispatcher"

const (
	defaultHandlerTimeout = time.Minute
	deliveryKeyPrefix     = "msg:"
)

var errUndecodable = errors.New("dispatcher: undecodable payload")

type Option func(*Dispatcher)

// WithHandlerTimeout bounds a single delivery. Handlers do not inherit the
// consumer's cancellation, so this is what stops a stuck one.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.handlerTimeout = timeout
		}
	}
}

type handleFunc func(ctx context.Context, msg messaging.Message) error

// Dispatcher binds the saga queues to their use cases and turns each
// handler result into an ack or a requeue.
type Dispatcher struct {
	consumer   messaging.Consumer
	transfer   port_transfer.TransferUseCase
	processor  port_operation.BalanceProcessor
	logger     *zap.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	handlerTimeout time.Duration

	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
}

func NewDispatcher(
	consumer messaging.Consumer,
	transfer port_transfer.TransferUseCase,
	processor port_operation.BalanceProcessor,
	logger *zap.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		consumer:       consumer,
		transfer:       transfer,
		processor:      processor,
		logger:         logger,
		tracer:         otel.Tracer(tracerName),
		propagator:     otel.GetTextMapPropagator(),
		handlerTimeout: defaultHandlerTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start registers one consumer per queue. Deliveries keep flowing until ctx
// is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	bindings := []struct {
		queue  string
		handle handleFunc
	}{
		{messaging.QueueTransfer, d.handleTransfer},
		{messaging.QueueUpdateBalance, d.handleUpdateBalance},
		{messaging.QueueRefundBalance, d.handleRefundBalance},
	}

	for _, b := range bindings {
		if err := d.consumer.Consume(ctx, b.queue, d.wrap(b.queue, b.handle)); err != nil {
			return fmt.Errorf("consume %s: %w", b.queue, err)
		}
		d.logger.Info("consumer bound", zap.String("queue", b.queue))
	}

	return nil
}

// Wait stops accepting deliveries and blocks until the handlers already
// running have settled their messages or ctx ends. Deliveries arriving
// after Wait was called are requeued untouched.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) begin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopping {
		return false
	}
	d.inflight.Add(1)
	return true
}

func (d *Dispatcher) handleTransfer(ctx context.Context, msg messaging.Message) error {
	var in port_transfer.TransferInput
	if err := json.Unmarshal(msg.Payload, &in); err != nil {
		return fmt.Errorf("%w: %v", errUndecodable, err)
	}
	in.CorrelationID = msg.Headers[messaging.HeaderCorrelationID]

	// A redelivered transfer must not move the money twice.
	if strings.TrimSpace(in.IdempotencyKey) == "" && msg.MessageID != "" {
		in.IdempotencyKey = deliveryKeyPrefix + msg.MessageID
	}

	out, err := d.transfer.Execute(ctx, in)
	if err != nil {
		return err
	}

	d.logger.Info("transfer accepted from queue",
		zap.String("transaction_id", out.TransactionID),
		zap.String("correlation_id", in.CorrelationID),
	)

	return nil
}

func (d *Dispatcher) handleUpdateBalance(ctx context.Context, msg messaging.Message) error {
	in, err := decodeBalanceEvent(msg)
	if err != nil {
		return err
	}
	return d.processor.UpdateBalance(ctx, in)
}

func (d *Dispatcher) handleRefundBalance(ctx context.Context, msg messaging.Message) error {
	in, err := decodeBalanceEvent(msg)
	if err != nil {
		return err
	}
	return d.processor.RefundBalance(ctx, in)
}

func decodeBalanceEvent(msg messaging.Message) (port_operation.BalanceEventInput, error) {
	var body messaging.TransactionMessage
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		return port_operation.BalanceEventInput{}, fmt.Errorf("%w: %v", errUndecodable, err)
	}

	if body.TransactionID == "" {
		return port_operation.BalanceEventInput{}, fmt.Errorf("%w: missing transactionId", errUndecodable)
	}

	return port_operation.BalanceEventInput{
		TransactionID: body.TransactionID,
		CorrelationID: msg.Headers[messaging.HeaderCorrelationID],
	}, nil
}

// wrap adapts handle to the channel's callback contract: done is invoked
// exactly once, even when handle panics. The handler keeps running when the
// consumer is stopped so that a ledger call in flight is not cut short.
func (d *Dispatcher) wrap(queue string, handle handleFunc) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message, done messaging.Done) {
		var once sync.Once
		settle := func(o messaging.Outcome) {
			once.Do(func() { done(o) })
		}

		if !d.begin() {
			settle(messaging.OutcomeRequeue)
			return
		}
		defer d.inflight.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.handlerTimeout)
		defer cancel()

		if msg.Headers != nil {
			ctx = d.propagator.Extract(ctx, propagation.MapCarrier(msg.Headers))
		}

		ctx, span := d.tracer.Start(ctx, queue+" process",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination.name", queue),
				attribute.Bool("messaging.redelivered", msg.Redelivered),
				attribute.String("messaging.message.id", msg.MessageID),
			),
		)
		defer span.End()

		log := d.logger.With(
			zap.String("queue", queue),
			zap.String("correlation_id", msg.Headers[messaging.HeaderCorrelationID]),
			zap.Bool("redelivered", msg.Redelivered),
			zap.Int("attempt", msg.Attempt),
		)

		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
				span.SetStatus(codes.Error, "panic")
				settle(messaging.OutcomeAck)
			}
		}()

		err := handle(ctx, msg)
		outcome := outcomeFor(err)

		switch {
		case err == nil:
			log.Debug("message handled")
		case errors.Is(err, errUndecodable):
			log.Error("dropping undecodable message", zap.Error(err), zap.ByteString("payload", msg.Payload))
		case outcome == messaging.OutcomeRequeue:
			log.Warn("handler failed, requeueing", zap.Error(err))
		default:
			log.Error("handler failed, dropping message", zap.Error(err))
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("messaging.outcome", outcome.String()))

		settle(outcome)
	}
}

func outcomeFor(err error) messaging.Outcome {
	if err == nil || errors.Is(err, errUndecodable) {
		return messaging.OutcomeAck
	}

	if domain_transfer.Retryable(err) {
		return messaging.OutcomeRequeue
	}

	return messaging.OutcomeAck
}
