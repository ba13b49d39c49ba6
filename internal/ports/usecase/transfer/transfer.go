package port_transfer

import (
	"context"

	"github.com/shopspring/decimal"
)

// TransferInput limits follow the widths of the stored columns.
type TransferInput struct {
	AccountOrigin      string          `json:"accountOrigin" validate:"required,max=64"`
	AccountDestination string          `json:"accountDestination" validate:"required,max=64,nefield=AccountOrigin"`
	Value              decimal.Decimal `json:"value"`
	IdempotencyKey     string          `json:"idempotencyKey,omitempty" validate:"omitempty,max=128"`
	CorrelationID      string          `json:"-" validate:"max=64"`
}

type TransferOutput struct {
	TransactionID string `json:"transactionId"`
}

type TransferUseCase interface {
	Execute(ctx context.Context, input TransferInput) (TransferOutput, error)
}
