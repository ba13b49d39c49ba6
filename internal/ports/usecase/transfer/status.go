package port_transfer

import "context"

type GetStatusInput struct {
	TransactionID string
	CorrelationID string
}

type GetStatusOutput struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type GetStatusUseCase interface {
	Execute(ctx context.Context, input GetStatusInput) (GetStatusOutput, error)
}
