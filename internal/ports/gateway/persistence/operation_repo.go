package port_persistence

import (
	"context"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
)

type OperationStatusUpdate struct {
	ID          string
	From        domain_transfer.OperationStatus
	To          domain_transfer.OperationStatus
	ErrorDetail string
	UpdatedAt   time.Time
}

type OperationRepository interface {
	Create(ctx context.Context, op *domain_transfer.Operation) error
	GetByID(ctx context.Context, operationID string) (*domain_transfer.Operation, error)
	ListByTransactionID(ctx context.Context, transactionID string) ([]*domain_transfer.Operation, error)
	UpdateStatus(ctx context.Context, u OperationStatusUpdate) error
}

func OperationUpdateFrom(op *domain_transfer.Operation, from domain_transfer.OperationStatus) OperationStatusUpdate {
	return OperationStatusUpdate{
		ID:          op.ID().String(),
		From:        from,
		To:          op.Status(),
		ErrorDetail: op.ErrorDetail(),
		UpdatedAt:   op.UpdatedAt(),
	}
}
