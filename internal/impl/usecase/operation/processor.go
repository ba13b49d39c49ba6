package impl_operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_ledger "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/ledger"
	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"
	port_platform "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/platform"
	port_operation "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/operation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix = "lock:transaction:"

	msgMissingOperations       = "missing operations for transaction"
	msgCancelledByCompensation = "cancelled by compensation"
	msgCompensated             = "transfer compensated"
	msgLedgerFailed            = "ledger call failed"
)

type BalanceProcessorImpl struct {
	transactions port_persistence.TransactionRepository
	operations   port_persistence.OperationRepository
	publisher    messaging.Publisher
	ledger       port_ledger.Client
	locker       port_platform.Locker
	clock        port_platform.Clock
	logger       *zap.Logger
}

var _ port_operation.BalanceProcessor = (*BalanceProcessorImpl)(nil)

func NewBalanceProcessorImpl(
	transactions port_persistence.TransactionRepository,
	operations port_persistence.OperationRepository,
	publisher messaging.Publisher,
	ledger port_ledger.Client,
	locker port_platform.Locker,
	clock port_platform.Clock,
	logger *zap.Logger,
) *BalanceProcessorImpl {
	return &BalanceProcessorImpl{
		transactions: transactions,
		operations:   operations,
		publisher:    publisher,
		ledger:       ledger,
		locker:       locker,
		clock:        clock,
		logger:       logger,
	}
}

// withTransaction loads the transaction named by in while holding its lock.
func (p *BalanceProcessorImpl) withTransaction(
	ctx context.Context,
	in port_operation.BalanceEventInput,
	fn func(ctx context.Context, tx *domain_transfer.Transaction, log *zap.Logger) error,
) error {
	id := strings.TrimSpace(in.TransactionID)
	log := p.logger.With(zap.String("transaction_id", id), zap.String("correlation_id", in.CorrelationID))

	if _, err := uuid.Parse(id); err != nil {
		log.Warn("malformed transaction id in event")
		return domain_transfer.NotFound(in.CorrelationID, fmt.Sprintf("No transaction found with id %s", id))
	}

	return p.locker.WithLock(ctx, lockKeyPrefix+id, func(ctx context.Context) error {
		tx, err := p.transactions.GetByID(ctx, id)
		if errors.Is(err, port_persistence.ErrNotFound) {
			log.Warn("transaction not found, dropping event")
			return domain_transfer.NotFound(in.CorrelationID, fmt.Sprintf("No transaction found with id %s", id))
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}

		if in.CorrelationID == "" {
			log = log.With(zap.String("correlation_id", tx.CorrelationID()))
		}

		return fn(ctx, tx, log)
	})
}

// saveTransaction applies change to tx and persists it as a compare-and-set
// over the status it had before.
func (p *BalanceProcessorImpl) saveTransaction(ctx context.Context, tx *domain_transfer.Transaction, change func(time.Time) error) error {
	from := tx.Status()

	if err := change(p.clock.Now()); err != nil {
		return domain_transfer.InconsistentState(tx.CorrelationID(),
			fmt.Sprintf("transaction %s cannot leave status %s", tx.ID(), from), err)
	}

	if err := p.transactions.UpdateStatus(ctx, port_persistence.TransactionUpdateFrom(tx, from)); err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID(), err)
	}

	return nil
}

func (p *BalanceProcessorImpl) saveOperation(ctx context.Context, tx *domain_transfer.Transaction, op *domain_transfer.Operation, change func(time.Time) error) error {
	from := op.Status()

	if err := change(p.clock.Now()); err != nil {
		return domain_transfer.InconsistentState(tx.CorrelationID(),
			fmt.Sprintf("operation %s cannot leave status %s", op.ID(), from), err)
	}

	if err := p.operations.UpdateStatus(ctx, port_persistence.OperationUpdateFrom(op, from)); err != nil {
		return fmt.Errorf("update operation %s: %w", op.ID(), err)
	}

	return nil
}

func (p *BalanceProcessorImpl) publishEvents(ctx context.Context, tx *domain_transfer.Transaction) error {
	for _, ev := range tx.PullEvents() {
		payload, err := json.Marshal(messaging.TransactionMessage{TransactionID: ev.AggregateID().String()})
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.EventName(), err)
		}

		headers := map[string]string{messaging.HeaderCorrelationID: ev.CorrelationID()}
		if err := p.publisher.Publish(ctx, ev.EventName(), payload, headers); err != nil {
			return fmt.Errorf("publish %s: %w", ev.EventName(), err)
		}
	}

	return nil
}

func (p *BalanceProcessorImpl) callLedger(ctx context.Context, tx *domain_transfer.Transaction, op *domain_transfer.Operation, opType domain_transfer.OperationType) error {
	_, err := p.ledger.UpdateBalance(ctx, port_ledger.UpdateBalanceParams{
		AccountNumber: op.AccountNumber(),
		Amount:        tx.Value(),
		Direction:     direction(opType),
	})
	return err
}

func direction(t domain_transfer.OperationType) port_ledger.Direction {
	if t == domain_transfer.OperationDebit {
		return port_ledger.DirectionDebit
	}
	return port_ledger.DirectionCredit
}

func failureDetail(err error) string {
	if err == nil {
		return ""
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}

	return msgLedgerFailed
}

func operationFields(op *domain_transfer.Operation) []zap.Field {
	return []zap.Field{
		zap.String("operation_id", op.ID().String()),
		zap.String("operation_type", string(op.Type())),
		zap.String("account_number", op.AccountNumber()),
		zap.String("operation_status", string(op.Status())),
	}
}
