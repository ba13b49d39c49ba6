package domain_transfer

import (
	"time"

	"github.com/google/uuid"
)

// Event names double as the queue the event is published to.
const (
	EventBalanceUpdateRequested = "update-balance"
	EventRefundRequested        = "refund-balance"
)

type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	CorrelationID() string
}

type BalanceUpdateRequested struct {
	At             time.Time
	TransactionID  uuid.UUID
	CorrelationID_ string
}

func (e BalanceUpdateRequested) EventName() string { return EventBalanceUpdateRequested }

func (e BalanceUpdateRequested) OccurredAt() time.Time { return e.At }

func (e BalanceUpdateRequested) AggregateID() uuid.UUID { return e.TransactionID }

func (e BalanceUpdateRequested) CorrelationID() string { return e.CorrelationID_ }

type RefundRequested struct {
	At             time.Time
	TransactionID  uuid.UUID
	CorrelationID_ string
	Reason         string
}

func (e RefundRequested) EventName() string { return EventRefundRequested }

func (e RefundRequested) OccurredAt() time.Time { return e.At }

func (e RefundRequested) AggregateID() uuid.UUID { return e.TransactionID }

func (e RefundRequested) CorrelationID() string { return e.CorrelationID_ }
