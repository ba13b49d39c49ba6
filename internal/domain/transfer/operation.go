package domain_transfer

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation is one side of a transfer: the debit on the origin account or
// the credit on the destination account.
type Operation struct {
	id            uuid.UUID
	transactionID uuid.UUID

	accountNumber string
	opType        OperationType

	status      OperationStatus
	errorDetail string

	createdAt time.Time
	updatedAt time.Time
}

type NewOperationParams struct {
	OperationID   uuid.UUID
	TransactionID uuid.UUID
	AccountNumber string
	Type          OperationType
	Now           time.Time
}

func NewOperation(p NewOperationParams) (*Operation, error) {
	if p.OperationID == uuid.Nil {
		return nil, ErrInvalidOperationID
	}

	if p.TransactionID == uuid.Nil {
		return nil, ErrInvalidTransactionID
	}

	account := strings.TrimSpace(p.AccountNumber)
	if account == "" {
		return nil, ErrInvalidAccountNumber
	}

	if !p.Type.IsValid() {
		return nil, ErrInvalidOperationType
	}

	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}

	return &Operation{
		id:            p.OperationID,
		transactionID: p.TransactionID,
		accountNumber: account,
		opType:        p.Type,
		status:        OperationPending,
		createdAt:     p.Now,
		updatedAt:     p.Now,
	}, nil
}

type RestoreOperationParams struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountNumber string
	Type          OperationType
	Status        OperationStatus
	ErrorDetail   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func RestoreOperation(p RestoreOperationParams) *Operation {
	return &Operation{
		id:            p.ID,
		transactionID: p.TransactionID,
		accountNumber: p.AccountNumber,
		opType:        p.Type,
		status:        p.Status,
		errorDetail:   p.ErrorDetail,
		createdAt:     p.CreatedAt,
		updatedAt:     p.UpdatedAt,
	}
}

func (o *Operation) Complete(now time.Time) error {
	return o.transition(OperationCompleted, now)
}

func (o *Operation) Fail(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrMissingFailureReason
	}

	if err := o.transition(OperationFailed, now); err != nil {
		return err
	}

	o.errorDetail = reason

	return nil
}

func (o *Operation) Refund(now time.Time) error {
	if err := o.transition(OperationRefunded, now); err != nil {
		return err
	}

	o.errorDetail = ""

	return nil
}

// RecordError keeps the status and stores why the last attempt failed.
func (o *Operation) RecordError(reason string, now time.Time) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	o.errorDetail = strings.TrimSpace(reason)
	o.updatedAt = now
}

func (o *Operation) transition(next OperationStatus, now time.Time) error {
	if !o.status.CanTransitionTo(next) {
		if o.status == OperationFailed || o.status == OperationRefunded {
			return ErrAlreadyFinalized
		}
		return ErrInvalidStateTransition
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	o.status = next
	o.updatedAt = now

	return nil
}

func (o *Operation) ID() uuid.UUID { return o.id }

func (o *Operation) TransactionID() uuid.UUID { return o.transactionID }

func (o *Operation) AccountNumber() string { return o.accountNumber }

func (o *Operation) Type() OperationType { return o.opType }

func (o *Operation) Status() OperationStatus { return o.status }

func (o *Operation) ErrorDetail() string { return o.errorDetail }

func (o *Operation) CreatedAt() time.Time { return o.createdAt }

func (o *Operation) UpdatedAt() time.Time { return o.updatedAt }
