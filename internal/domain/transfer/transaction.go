package domain_transfer

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	id uuid.UUID

	value decimal.Decimal

	status        TransactionStatus
	errorDetail   string
	correlationID string

	idempotencyKey string
	requestHash    string

	createdAt time.Time
	updatedAt time.Time

	pendingEvents []DomainEvent
}

type NewTransactionParams struct {
	TransactionID  uuid.UUID
	Value          decimal.Decimal
	CorrelationID  string
	IdempotencyKey string
	RequestHash    string
	Now            time.Time
}

func NewTransaction(p NewTransactionParams) (*Transaction, error) {
	if p.TransactionID == uuid.Nil {
		return nil, ErrInvalidTransactionID
	}

	if !p.Value.IsPositive() {
		return nil, ErrInvalidValue
	}

	if strings.TrimSpace(p.CorrelationID) == "" {
		return nil, ErrMissingCorrelationID
	}

	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}

	t := &Transaction{
		id:             p.TransactionID,
		value:          p.Value,
		status:         TransactionInQueue,
		correlationID:  p.CorrelationID,
		idempotencyKey: strings.TrimSpace(p.IdempotencyKey),
		requestHash:    p.RequestHash,
		createdAt:      p.Now,
		updatedAt:      p.Now,
	}

	t.raise(BalanceUpdateRequested{
		At:             p.Now,
		TransactionID:  t.id,
		CorrelationID_: t.correlationID,
	})

	return t, nil
}

// RestoreTransactionParams carries a persisted transaction back into the domain.
type RestoreTransactionParams struct {
	ID             uuid.UUID
	Value          decimal.Decimal
	Status         TransactionStatus
	ErrorDetail    string
	CorrelationID  string
	IdempotencyKey string
	RequestHash    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func RestoreTransaction(p RestoreTransactionParams) *Transaction {
	return &Transaction{
		id:             p.ID,
		value:          p.Value,
		status:         p.Status,
		errorDetail:    p.ErrorDetail,
		correlationID:  p.CorrelationID,
		idempotencyKey: p.IdempotencyKey,
		requestHash:    p.RequestHash,
		createdAt:      p.CreatedAt,
		updatedAt:      p.UpdatedAt,
	}
}

func (t *Transaction) StartProcessing(now time.Time) error {
	return t.transition(TransactionProcessing, now)
}

func (t *Transaction) Settle(now time.Time) error {
	return t.transition(TransactionSettled, now)
}

// Fail closes the transaction. An empty reason keeps the detail recorded
// by RequestRefund.
func (t *Transaction) Fail(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = t.errorDetail
	}

	if reason == "" {
		return ErrMissingFailureReason
	}

	if err := t.transition(TransactionFailed, now); err != nil {
		return err
	}

	t.errorDetail = reason

	return nil
}

// RequestRefund records why the transfer cannot settle and raises the
// event that starts compensation. The status stays Processing until the
// refund handler closes the transaction.
func (t *Transaction) RequestRefund(reason string, now time.Time) error {
	if t.status.IsFinal() {
		return ErrAlreadyFinalized
	}

	if t.status != TransactionProcessing {
		return ErrInvalidStateTransition
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrMissingFailureReason
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	t.errorDetail = reason
	t.updatedAt = now

	t.raise(RefundRequested{
		At:             now,
		TransactionID:  t.id,
		CorrelationID_: t.correlationID,
		Reason:         reason,
	})

	return nil
}

// Republish raises the balance update event again for a transaction that
// never left the queue.
func (t *Transaction) Republish(now time.Time) error {
	if t.status != TransactionInQueue {
		return ErrInvalidStateTransition
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	t.raise(BalanceUpdateRequested{
		At:             now,
		TransactionID:  t.id,
		CorrelationID_: t.correlationID,
	})

	return nil
}

func (t *Transaction) transition(next TransactionStatus, now time.Time) error {
	if t.status.IsFinal() {
		return ErrAlreadyFinalized
	}

	if !t.status.CanTransitionTo(next) {
		return ErrInvalidStateTransition
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	t.status = next
	t.updatedAt = now

	return nil
}

func (t *Transaction) PullEvents() []DomainEvent {
	if len(t.pendingEvents) == 0 {
		return nil
	}

	ev := make([]DomainEvent, len(t.pendingEvents))
	copy(ev, t.pendingEvents)

	t.pendingEvents = t.pendingEvents[:0]

	return ev
}

func (t *Transaction) raise(event DomainEvent) {
	t.pendingEvents = append(t.pendingEvents, event)
}

func (t *Transaction) ID() uuid.UUID { return t.id }

func (t *Transaction) Value() decimal.Decimal { return t.value }

func (t *Transaction) Status() TransactionStatus { return t.status }

func (t *Transaction) ErrorDetail() string { return t.errorDetail }

func (t *Transaction) CorrelationID() string { return t.correlationID }

func (t *Transaction) IdempotencyKey() string { return t.idempotencyKey }

func (t *Transaction) RequestHash() string { return t.requestHash }

func (t *Transaction) CreatedAt() time.Time { return t.createdAt }

func (t *Transaction) UpdatedAt() time.Time { return t.updatedAt }
