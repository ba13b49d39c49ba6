package impl_operation

import (
	"context"
	"fmt"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_operation "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/operation"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func (p *BalanceProcessorImpl) UpdateBalance(ctx context.Context, in port_operation.BalanceEventInput) error {
	return p.withTransaction(ctx, in, p.updateBalance)
}

func (p *BalanceProcessorImpl) updateBalance(ctx context.Context, tx *domain_transfer.Transaction, log *zap.Logger) error {
	if tx.Status().IsFinal() {
		log.Info("transaction already final, skipping balance update", zap.String("status", string(tx.Status())))
		return nil
	}

	if tx.Status() == domain_transfer.TransactionInQueue {
		if err := p.saveTransaction(ctx, tx, tx.StartProcessing); err != nil {
			return err
		}
	}

	ops, err := p.operations.ListByTransactionID(ctx, tx.ID().String())
	if err != nil {
		return fmt.Errorf("list operations: %w", err)
	}

	debit, credit := operationPair(ops)
	if debit == nil || credit == nil {
		log.Error("transaction has an incomplete operation pair", zap.Int("operations", len(ops)))
		return p.saveTransaction(ctx, tx, func(now time.Time) error {
			return tx.Fail(msgMissingOperations, now)
		})
	}

	var g errgroup.Group
	for _, op := range []*domain_transfer.Operation{debit, credit} {
		if op.Status().IsFinal() {
			log.Debug("operation already resolved, skipping", operationFields(op)...)
			continue
		}

		g.Go(func() error {
			return p.applyOperation(ctx, tx, op, log)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return p.resolve(ctx, tx, log, debit, credit)
}

// applyOperation performs the ledger call for one pending operation. A
// ledger failure is an outcome, not an error: the operation is failed and
// compensation picks it up.
func (p *BalanceProcessorImpl) applyOperation(ctx context.Context, tx *domain_transfer.Transaction, op *domain_transfer.Operation, log *zap.Logger) error {
	if err := p.callLedger(ctx, tx, op, op.Type()); err != nil {
		detail := failureDetail(err)
		log.Error("ledger call failed", append(operationFields(op), zap.Error(err))...)

		return p.saveOperation(ctx, tx, op, func(now time.Time) error {
			return op.Fail(detail, now)
		})
	}

	if err := p.saveOperation(ctx, tx, op, op.Complete); err != nil {
		return err
	}

	log.Info("operation completed", operationFields(op)...)

	return nil
}

func (p *BalanceProcessorImpl) resolve(ctx context.Context, tx *domain_transfer.Transaction, log *zap.Logger, debit, credit *domain_transfer.Operation) error {
	switch {
	case debit.Status() == domain_transfer.OperationCompleted && credit.Status() == domain_transfer.OperationCompleted:
		if err := p.saveTransaction(ctx, tx, tx.Settle); err != nil {
			return err
		}
		log.Info("transaction settled")
		return nil

	case debit.Status() == domain_transfer.OperationFailed || credit.Status() == domain_transfer.OperationFailed:
		reason := firstFailure(debit, credit)
		if err := p.saveTransaction(ctx, tx, func(now time.Time) error {
			return tx.RequestRefund(reason, now)
		}); err != nil {
			return err
		}

		if err := p.publishEvents(ctx, tx); err != nil {
			log.Error("failed to publish refund event", zap.Error(err))
			return err
		}

		log.Warn("transaction needs compensation", zap.String("reason", reason))
		return nil

	default:
		return domain_transfer.InconsistentState(tx.CorrelationID(),
			fmt.Sprintf("transaction %s has operations %s/%s", tx.ID(), debit.Status(), credit.Status()), nil)
	}
}

// operationPair picks the debit and the credit out of ops; either is nil
// when its creation never reached the store.
func operationPair(ops []*domain_transfer.Operation) (debit, credit *domain_transfer.Operation) {
	for _, op := range ops {
		switch op.Type() {
		case domain_transfer.OperationDebit:
			if debit == nil {
				debit = op
			}
		case domain_transfer.OperationCredit:
			if credit == nil {
				credit = op
			}
		}
	}
	return debit, credit
}

func firstFailure(ops ...*domain_transfer.Operation) string {
	for _, op := range ops {
		if op.Status() == domain_transfer.OperationFailed && op.ErrorDetail() != "" {
			return op.ErrorDetail()
		}
	}
	return msgLedgerFailed
}
