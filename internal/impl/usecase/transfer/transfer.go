package impl_transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"
	port_platform "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/platform"
	port_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/transfer"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const valueScale = 2

// maxValue is the first amount that no longer fits NUMERIC(20,2).
var maxValue = decimal.New(1, 18)

type TransferUsecaseImpl struct {
	transactions port_persistence.TransactionRepository
	operations   port_persistence.OperationRepository
	publisher    messaging.Publisher
	clock        port_platform.Clock
	ids          port_platform.IDGenerator
	logger       *zap.Logger
	validate     *validator.Validate
}

func NewTransferUsecaseImpl(
	transactions port_persistence.TransactionRepository,
	operations port_persistence.OperationRepository,
	publisher messaging.Publisher,
	clock port_platform.Clock,
	ids port_platform.IDGenerator,
	logger *zap.Logger,
) *TransferUsecaseImpl {
	return &TransferUsecaseImpl{
		transactions: transactions,
		operations:   operations,
		publisher:    publisher,
		clock:        clock,
		ids:          ids,
		logger:       logger,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (u *TransferUsecaseImpl) Execute(ctx context.Context, in port_transfer.TransferInput) (port_transfer.TransferOutput, error) {
	in.AccountOrigin = strings.TrimSpace(in.AccountOrigin)
	in.AccountDestination = strings.TrimSpace(in.AccountDestination)

	correlationID := strings.TrimSpace(in.CorrelationID)
	if correlationID == "" {
		correlationID = u.ids.NewUUID().String()
	}

	in.CorrelationID = correlationID
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	log := u.logger.With(zap.String("correlation_id", correlationID))

	if err := u.validateInput(in, correlationID); err != nil {
		log.Warn("transfer rejected",
			zap.String("account_origin", in.AccountOrigin),
			zap.String("account_destination", in.AccountDestination),
			zap.String("value", in.Value.String()),
			zap.Error(err),
		)
		return port_transfer.TransferOutput{}, err
	}

	requestHash := ""
	if key := in.IdempotencyKey; key != "" {
		requestHash = HashTransferInput(in)

		out, found, err := u.replay(ctx, key, requestHash, correlationID)
		if found || err != nil {
			return out, err
		}
	}

	now := u.clock.Now()

	tx, err := domain_transfer.NewTransaction(domain_transfer.NewTransactionParams{
		TransactionID:  u.ids.NewUUID(),
		Value:          in.Value,
		CorrelationID:  correlationID,
		IdempotencyKey: in.IdempotencyKey,
		RequestHash:    requestHash,
		Now:            now,
	})
	if err != nil {
		return port_transfer.TransferOutput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := u.transactions.Create(ctx, tx); err != nil {
		if requestHash != "" && errors.Is(err, port_persistence.ErrAlreadyExists) {
			// a concurrent request with the same key won the insert
			log.Info("idempotency key taken concurrently, replaying", zap.String("idempotency_key", in.IdempotencyKey))
			out, found, replayErr := u.replay(ctx, in.IdempotencyKey, requestHash, correlationID)
			if found || replayErr != nil {
				return out, replayErr
			}
		}
		log.Error("failed to create transaction", zap.Error(err))
		return port_transfer.TransferOutput{}, fmt.Errorf("create transaction: %w", err)
	}

	log = log.With(zap.String("transaction_id", tx.ID().String()))
	log.Info("transaction created", zap.String("status", string(tx.Status())))

	debit, credit, err := u.newOperationPair(tx, in, now)
	if err != nil {
		return port_transfer.TransferOutput{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	u.createOperations(ctx, log, debit, credit)

	if err := u.publishEvents(ctx, tx); err != nil {
		log.Error("failed to publish transaction events", zap.Error(err))
		return port_transfer.TransferOutput{}, err
	}

	return port_transfer.TransferOutput{TransactionID: tx.ID().String()}, nil
}

func (u *TransferUsecaseImpl) validateInput(in port_transfer.TransferInput, traceID string) error {
	if err := u.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "nefield" {
					return domain_transfer.Rejected(traceID, msgSameAccount)
				}
			}
			return domain_transfer.Rejected(traceID, fmt.Sprintf("%s: %s", ErrInvalidInput, verrs.Error()))
		}
		return domain_transfer.Rejected(traceID, ErrInvalidInput.Error())
	}

	switch {
	case !in.Value.IsPositive():
		return domain_transfer.Rejected(traceID, msgInvalidValue)
	case !in.Value.Equal(in.Value.Truncate(valueScale)):
		return domain_transfer.Rejected(traceID, msgValuePrecision)
	case in.Value.GreaterThanOrEqual(maxValue):
		return domain_transfer.Rejected(traceID, msgValueTooLarge)
	}

	return nil
}

// replay answers a retried request carrying an idempotency key that was
// already accepted.
func (u *TransferUsecaseImpl) replay(ctx context.Context, key, requestHash, traceID string) (port_transfer.TransferOutput, bool, error) {
	existing, err := u.transactions.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, port_persistence.ErrNotFound) {
		return port_transfer.TransferOutput{}, false, nil
	}
	if err != nil {
		return port_transfer.TransferOutput{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}

	if existing.RequestHash() != requestHash {
		u.logger.Warn("idempotency key conflict",
			zap.String("correlation_id", traceID),
			zap.String("transaction_id", existing.ID().String()),
		)
		err := domain_transfer.Rejected(traceID, msgIdempotencyConflict)
		err.Err = ErrIdempotencyConflict
		return port_transfer.TransferOutput{}, true, err
	}

	if existing.Status() == domain_transfer.TransactionInQueue {
		if err := existing.Republish(u.clock.Now()); err == nil {
			if err := u.publishEvents(ctx, existing); err != nil {
				return port_transfer.TransferOutput{}, true, err
			}
		}
	}

	return port_transfer.TransferOutput{TransactionID: existing.ID().String()}, true, nil
}

func (u *TransferUsecaseImpl) newOperationPair(tx *domain_transfer.Transaction, in port_transfer.TransferInput, now time.Time) (*domain_transfer.Operation, *domain_transfer.Operation, error) {
	debit, err := domain_transfer.NewOperation(domain_transfer.NewOperationParams{
		OperationID:   u.ids.NewUUID(),
		TransactionID: tx.ID(),
		AccountNumber: in.AccountOrigin,
		Type:          domain_transfer.OperationDebit,
		Now:           now,
	})
	if err != nil {
		return nil, nil, err
	}

	credit, err := domain_transfer.NewOperation(domain_transfer.NewOperationParams{
		OperationID:   u.ids.NewUUID(),
		TransactionID: tx.ID(),
		AccountNumber: in.AccountDestination,
		Type:          domain_transfer.OperationCredit,
		Now:           now,
	})
	if err != nil {
		return nil, nil, err
	}

	return debit, credit, nil
}

// createOperations issues both creations in parallel and waits for both.
// Failures are logged only: the processor fails a transaction whose
// operation pair is incomplete.
func (u *TransferUsecaseImpl) createOperations(ctx context.Context, log *zap.Logger, ops ...*domain_transfer.Operation) []error {
	outcomes := make([]error, len(ops))

	var g errgroup.Group
	for i, op := range ops {
		g.Go(func() error {
			outcomes[i] = u.operations.Create(ctx, op)
			return nil
		})
	}
	_ = g.Wait()

	for i, op := range ops {
		fields := []zap.Field{
			zap.String("operation_id", op.ID().String()),
			zap.String("operation_type", string(op.Type())),
			zap.String("account_number", op.AccountNumber()),
		}
		if outcomes[i] != nil {
			log.Error("failed to create operation", append(fields, zap.Error(outcomes[i]))...)
			continue
		}
		log.Info("operation created", fields...)
	}

	return outcomes
}

func (u *TransferUsecaseImpl) publishEvents(ctx context.Context, tx *domain_transfer.Transaction) error {
	for _, ev := range tx.PullEvents() {
		payload, err := json.Marshal(messaging.TransactionMessage{TransactionID: ev.AggregateID().String()})
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.EventName(), err)
		}

		headers := map[string]string{messaging.HeaderCorrelationID: ev.CorrelationID()}
		if err := u.publisher.Publish(ctx, ev.EventName(), payload, headers); err != nil {
			return fmt.Errorf("publish %s: %w", ev.EventName(), err)
		}
	}

	return nil
}
