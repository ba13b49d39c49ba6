package impl_operation

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_operation "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/operation"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func (p *BalanceProcessorImpl) RefundBalance(ctx context.Context, in port_operation.BalanceEventInput) error {
	return p.withTransaction(ctx, in, p.refundBalance)
}

func (p *BalanceProcessorImpl) refundBalance(ctx context.Context, tx *domain_transfer.Transaction, log *zap.Logger) error {
	switch tx.Status() {
	case domain_transfer.TransactionFailed:
		log.Info("transaction already failed, skipping refund")
		return nil
	case domain_transfer.TransactionSettled, domain_transfer.TransactionInQueue:
		log.Error("refund requested for transaction in unexpected status", zap.String("status", string(tx.Status())))
		return domain_transfer.InconsistentState(tx.CorrelationID(),
			fmt.Sprintf("refund requested for transaction %s in status %s", tx.ID(), tx.Status()), nil)
	}

	ops, err := p.operations.ListByTransactionID(ctx, tx.ID().String())
	if err != nil {
		return fmt.Errorf("list operations: %w", err)
	}

	var g errgroup.Group
	for _, op := range ops {
		switch op.Status() {
		case domain_transfer.OperationCompleted:
			g.Go(func() error {
				return p.compensate(ctx, tx, op, log)
			})
		case domain_transfer.OperationPending:
			g.Go(func() error {
				return p.saveOperation(ctx, tx, op, func(now time.Time) error {
					return op.Fail(msgCancelledByCompensation, now)
				})
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	reason := tx.ErrorDetail()
	if reason == "" {
		reason = firstFailure(ops...)
		if reason == msgLedgerFailed {
			reason = msgCompensated
		}
	}

	if err := p.saveTransaction(ctx, tx, func(now time.Time) error {
		return tx.Fail(reason, now)
	}); err != nil {
		return err
	}

	log.Warn("transaction failed after compensation", zap.String("reason", reason))

	return nil
}

// compensate reverses a completed operation. When the reverse call fails
// the operation stays Completed with the error recorded, and the returned
// RemoteFailure makes the event come back.
func (p *BalanceProcessorImpl) compensate(ctx context.Context, tx *domain_transfer.Transaction, op *domain_transfer.Operation, log *zap.Logger) error {
	if err := p.callLedger(ctx, tx, op, op.Type().Inverse()); err != nil {
		detail := failureDetail(err)
		log.Error("compensation ledger call failed", append(operationFields(op), zap.Error(err))...)

		if saveErr := p.saveOperation(ctx, tx, op, func(now time.Time) error {
			op.RecordError(detail, now)
			return nil
		}); saveErr != nil {
			return saveErr
		}

		var remote *domain_transfer.Error
		if errors.As(err, &remote) && remote.Kind == domain_transfer.KindRemoteFailure {
			return fmt.Errorf("compensate operation %s: %w", op.ID(), err)
		}
		return domain_transfer.RemoteFailure(tx.CorrelationID(), 0, detail, err)
	}

	if err := p.saveOperation(ctx, tx, op, op.Refund); err != nil {
		return err
	}

	log.Info("operation refunded", operationFields(op)...)

	return nil
}
