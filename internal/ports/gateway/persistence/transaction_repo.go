package port_persistence

import (
	"context"
	"errors"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
)

var (
	ErrNotFound       = errors.New("persistence: not found")
	ErrAlreadyExists  = errors.New("persistence: already exists")
	ErrStatusConflict = errors.New("persistence: status changed concurrently")
)

// TransactionStatusUpdate is a compare-and-set: the row is only touched
// while its status still equals From.
type TransactionStatusUpdate struct {
	ID          string
	From        domain_transfer.TransactionStatus
	To          domain_transfer.TransactionStatus
	ErrorDetail string
	UpdatedAt   time.Time
}

type TransactionRepository interface {
	Create(ctx context.Context, t *domain_transfer.Transaction) error
	GetByID(ctx context.Context, transactionID string) (*domain_transfer.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain_transfer.Transaction, error)
	UpdateStatus(ctx context.Context, u TransactionStatusUpdate) error
}

// TransactionUpdateFrom builds the update that persists t's current state
// over a row still holding status from.
func TransactionUpdateFrom(t *domain_transfer.Transaction, from domain_transfer.TransactionStatus) TransactionStatusUpdate {
	return TransactionStatusUpdate{
		ID:          t.ID().String(),
		From:        from,
		To:          t.Status(),
		ErrorDetail: t.ErrorDetail(),
		UpdatedAt:   t.UpdatedAt(),
	}
}
