package impl_transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"
	port_platform "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/platform"
	port_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/transfer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GetStatusUsecaseImpl struct {
	transactions port_persistence.TransactionRepository
	ids          port_platform.IDGenerator
	logger       *zap.Logger
}

func NewGetStatusUsecaseImpl(
	transactions port_persistence.TransactionRepository,
	ids port_platform.IDGenerator,
	logger *zap.Logger,
) *GetStatusUsecaseImpl {
	return &GetStatusUsecaseImpl{
		transactions: transactions,
		ids:          ids,
		logger:       logger,
	}
}

func (u *GetStatusUsecaseImpl) Execute(ctx context.Context, in port_transfer.GetStatusInput) (port_transfer.GetStatusOutput, error) {
	traceID := strings.TrimSpace(in.CorrelationID)
	if traceID == "" {
		traceID = u.ids.NewUUID().String()
	}

	id := strings.TrimSpace(in.TransactionID)
	if _, err := uuid.Parse(id); err != nil {
		return port_transfer.GetStatusOutput{}, u.notFound(traceID, id)
	}

	tx, err := u.transactions.GetByID(ctx, id)
	if errors.Is(err, port_persistence.ErrNotFound) {
		return port_transfer.GetStatusOutput{}, u.notFound(traceID, id)
	}
	if err != nil {
		return port_transfer.GetStatusOutput{}, fmt.Errorf("get transaction: %w", err)
	}

	return port_transfer.GetStatusOutput{
		Status: string(tx.Status()),
		Error:  tx.ErrorDetail(),
	}, nil
}

func (u *GetStatusUsecaseImpl) notFound(traceID, id string) error {
	message := fmt.Sprintf("No transaction found with id %s", id)

	u.logger.Warn("transaction not found",
		zap.String("correlation_id", traceID),
		zap.String("transaction_id", id),
	)

	return domain_transfer.NotFound(traceID, message)
}
