package impl_operation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	impl_operation "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/usecase/operation"
	port_ledger "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/ledger"
	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging"
	gwmocks "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/mocks"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"
	port_operation "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/operation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	testCorrelationID = "corr-xyz"
	originAccount     = "A1"
	destAccount       = "A2"
)

var (
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testValue = decimal.NewFromInt(100)
)

type processorDeps struct {
	transactions *gwmocks.MockTransactionRepository
	operations   *gwmocks.MockOperationRepository
	publisher    *gwmocks.MockPublisher
	ledger       *gwmocks.MockClient
	locker       *gwmocks.MockLocker
	clock        *gwmocks.MockClock
}

func newProcessor(ctrl *gomock.Controller) (*impl_operation.BalanceProcessorImpl, processorDeps) {
	d := processorDeps{
		transactions: gwmocks.NewMockTransactionRepository(ctrl),
		operations:   gwmocks.NewMockOperationRepository(ctrl),
		publisher:    gwmocks.NewMockPublisher(ctrl),
		ledger:       gwmocks.NewMockClient(ctrl),
		locker:       gwmocks.NewMockLocker(ctrl),
		clock:        gwmocks.NewMockClock(ctrl),
	}

	d.clock.EXPECT().Now().Return(testNow).AnyTimes()

	p := impl_operation.NewBalanceProcessorImpl(d.transactions, d.operations, d.publisher, d.ledger, d.locker, d.clock, zap.NewNop())
	return p, d
}

func expectLock(d processorDeps, id uuid.UUID) {
	d.locker.EXPECT().
		WithLock(gomock.Any(), "lock:transaction:"+id.String(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context) error) error {
			return fn(ctx)
		})
}

func restoreTx(id uuid.UUID, status domain_transfer.TransactionStatus, detail string) *domain_transfer.Transaction {
	return domain_transfer.RestoreTransaction(domain_transfer.RestoreTransactionParams{
		ID:            id,
		Value:         testValue,
		Status:        status,
		ErrorDetail:   detail,
		CorrelationID: testCorrelationID,
		CreatedAt:     testNow.Add(-time.Minute),
		UpdatedAt:     testNow.Add(-time.Minute),
	})
}

func restoreOp(txID uuid.UUID, opType domain_transfer.OperationType, status domain_transfer.OperationStatus, detail string) *domain_transfer.Operation {
	account := originAccount
	if opType == domain_transfer.OperationCredit {
		account = destAccount
	}

	return domain_transfer.RestoreOperation(domain_transfer.RestoreOperationParams{
		ID:            uuid.New(),
		TransactionID: txID,
		AccountNumber: account,
		Type:          opType,
		Status:        status,
		ErrorDetail:   detail,
		CreatedAt:     testNow.Add(-time.Minute),
		UpdatedAt:     testNow.Add(-time.Minute),
	})
}

func ledgerParams(account string, dir port_ledger.Direction) port_ledger.UpdateBalanceParams {
	return port_ledger.UpdateBalanceParams{AccountNumber: account, Amount: testValue, Direction: dir}
}

func txUpdate(id uuid.UUID, from, to domain_transfer.TransactionStatus, detail string) port_persistence.TransactionStatusUpdate {
	return port_persistence.TransactionStatusUpdate{ID: id.String(), From: from, To: to, ErrorDetail: detail, UpdatedAt: testNow}
}

func opUpdate(op *domain_transfer.Operation, from, to domain_transfer.OperationStatus, detail string) port_persistence.OperationStatusUpdate {
	return port_persistence.OperationStatusUpdate{ID: op.ID().String(), From: from, To: to, ErrorDetail: detail, UpdatedAt: testNow}
}

func eventInput(id uuid.UUID) port_operation.BalanceEventInput {
	return port_operation.BalanceEventInput{TransactionID: id.String(), CorrelationID: testCorrelationID}
}

func TestUpdateBalance_BothSucceed_Settles(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationPending, "")
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationPending, "")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, domain_transfer.TransactionInQueue, ""), nil)

	processing := d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionInQueue, domain_transfer.TransactionProcessing, "")).
		Return(nil)

	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).
		Return([]*domain_transfer.Operation{debit, credit}, nil).
		After(processing)

	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(originAccount, port_ledger.DirectionDebit)).
		Return(port_ledger.AccountBalance{AccountNumber: originAccount}, nil)
	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(destAccount, port_ledger.DirectionCredit)).
		Return(port_ledger.AccountBalance{AccountNumber: destAccount}, nil)

	debitDone := d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(debit, domain_transfer.OperationPending, domain_transfer.OperationCompleted, "")).
		Return(nil)
	creditDone := d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(credit, domain_transfer.OperationPending, domain_transfer.OperationCompleted, "")).
		Return(nil)

	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionProcessing, domain_transfer.TransactionSettled, "")).
		Return(nil).
		After(debitDone).
		After(creditDone)

	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	if err := p.UpdateBalance(context.Background(), eventInput(id)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestUpdateBalance_CreditFails_RecordsDetailAndPublishesRefund(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationPending, "")
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationPending, "")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, domain_transfer.TransactionInQueue, ""), nil)
	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionInQueue, domain_transfer.TransactionProcessing, "")).
		Return(nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{debit, credit}, nil)

	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(originAccount, port_ledger.DirectionDebit)).
		Return(port_ledger.AccountBalance{}, nil)
	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(destAccount, port_ledger.DirectionCredit)).
		Return(port_ledger.AccountBalance{}, domain_transfer.RemoteFailure("trace-1", 500, "Account is blocked", nil))

	d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(debit, domain_transfer.OperationPending, domain_transfer.OperationCompleted, "")).
		Return(nil)
	d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(credit, domain_transfer.OperationPending, domain_transfer.OperationFailed, "Account is blocked")).
		Return(nil)

	recorded := d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionProcessing, domain_transfer.TransactionProcessing, "Account is blocked")).
		Return(nil)

	d.publisher.EXPECT().
		Publish(gomock.Any(), messaging.QueueRefundBalance, gomock.Any(), map[string]string{messaging.HeaderCorrelationID: testCorrelationID}).
		DoAndReturn(func(_ context.Context, _ string, payload []byte, _ map[string]string) error {
			var msg messaging.TransactionMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				t.Fatalf("invalid payload: %v", err)
			}
			if msg.TransactionID != id.String() {
				t.Fatalf("expected transactionId %s, got %s", id, msg.TransactionID)
			}
			return nil
		}).
		After(recorded)

	if err := p.UpdateBalance(context.Background(), eventInput(id)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestUpdateBalance_RefundPublishFails_ReturnsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationFailed, "Insufficient funds")
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationCompleted, "")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, domain_transfer.TransactionProcessing, ""), nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{debit, credit}, nil)
	d.ledger.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Times(0)
	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionProcessing, domain_transfer.TransactionProcessing, "Insufficient funds")).
		Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), messaging.QueueRefundBalance, gomock.Any(), gomock.Any()).Return(errors.New("channel closed"))

	err := p.UpdateBalance(context.Background(), eventInput(id))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain_transfer.Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestUpdateBalance_Redelivery_OnlyCallsPendingOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationCompleted, "")
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationPending, "")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, domain_transfer.TransactionProcessing, ""), nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{credit, debit}, nil)

	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(destAccount, port_ledger.DirectionCredit)).
		Return(port_ledger.AccountBalance{}, nil)
	d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(credit, domain_transfer.OperationPending, domain_transfer.OperationCompleted, "")).
		Return(nil)
	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionProcessing, domain_transfer.TransactionSettled, "")).
		Return(nil)

	if err := p.UpdateBalance(context.Background(), eventInput(id)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestUpdateBalance_MissingOperation_FailsWithoutLedgerCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationPending, "")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, domain_transfer.TransactionInQueue, ""), nil)
	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionInQueue, domain_transfer.TransactionProcessing, "")).
		Return(nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{debit}, nil)
	d.ledger.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Times(0)
	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionProcessing, domain_transfer.TransactionFailed, "missing operations for transaction")).
		Return(nil)

	if err := p.UpdateBalance(context.Background(), eventInput(id)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestUpdateBalance_FinalTransaction_NoOp(t *testing.T) {
	for _, status := range []domain_transfer.TransactionStatus{domain_transfer.TransactionSettled, domain_transfer.TransactionFailed} {
		t.Run(string(status), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			p, d := newProcessor(ctrl)

			id := uuid.New()
			expectLock(d, id)
			d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, status, ""), nil)
			d.transactions.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Times(0)
			d.operations.EXPECT().ListByTransactionID(gomock.Any(), gomock.Any()).Times(0)
			d.ledger.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Times(0)

			if err := p.UpdateBalance(context.Background(), eventInput(id)); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestUpdateBalance_UnknownTransaction_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(nil, port_persistence.ErrNotFound)

	err := p.UpdateBalance(context.Background(), eventInput(id))
	if !errors.Is(err, domain_transfer.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if domain_transfer.Retryable(err) {
		t.Fatalf("not found must not be retried")
	}
}

func TestUpdateBalance_MalformedID_NotFoundWithoutLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)
	d.locker.EXPECT().WithLock(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := p.UpdateBalance(context.Background(), port_operation.BalanceEventInput{TransactionID: "not-a-uuid"})
	if !errors.Is(err, domain_transfer.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateBalance_StatusConflict_Retryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, domain_transfer.TransactionInQueue, ""), nil)
	d.transactions.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Return(port_persistence.ErrStatusConflict)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), gomock.Any()).Times(0)

	err := p.UpdateBalance(context.Background(), eventInput(id))
	if !errors.Is(err, port_persistence.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if !domain_transfer.Retryable(err) {
		t.Fatalf("expected conflict to be retryable")
	}
}

func TestUpdateBalance_LockError_Propagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	lockErr := errors.New("lock: already taken")
	d.locker.EXPECT().WithLock(gomock.Any(), "lock:transaction:"+id.String(), gomock.Any()).Return(lockErr)
	d.transactions.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	err := p.UpdateBalance(context.Background(), eventInput(id))
	if !errors.Is(err, lockErr) {
		t.Fatalf("expected lock error, got %v", err)
	}
	if !domain_transfer.Retryable(err) {
		t.Fatalf("expected lock error to be retryable")
	}
}

func TestRefundBalance_RefundsCompletedAndFailsTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationCompleted, "")
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationFailed, "Account is blocked")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).
		Return(restoreTx(id, domain_transfer.TransactionProcessing, "Account is blocked"), nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{debit, credit}, nil)

	// the debit is reversed with a credit on the same account
	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(originAccount, port_ledger.DirectionCredit)).
		Return(port_ledger.AccountBalance{}, nil)

	refunded := d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(debit, domain_transfer.OperationCompleted, domain_transfer.OperationRefunded, "")).
		Return(nil)

	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionProcessing, domain_transfer.TransactionFailed, "Account is blocked")).
		Return(nil).
		After(refunded)

	if err := p.RefundBalance(context.Background(), eventInput(id)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRefundBalance_InverseCallFails_RecordsErrorAndRequeues(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationCompleted, "")
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationFailed, "Account is blocked")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).
		Return(restoreTx(id, domain_transfer.TransactionProcessing, "Account is blocked"), nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{debit, credit}, nil)

	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(originAccount, port_ledger.DirectionCredit)).
		Return(port_ledger.AccountBalance{}, domain_transfer.RemoteFailure("trace-2", 503, "Service Unavailable", nil))
	d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(debit, domain_transfer.OperationCompleted, domain_transfer.OperationCompleted, "Service Unavailable")).
		Return(nil)
	d.transactions.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).Times(0)

	err := p.RefundBalance(context.Background(), eventInput(id))
	if !errors.Is(err, domain_transfer.ErrRemoteFailure) {
		t.Fatalf("expected ErrRemoteFailure, got %v", err)
	}
	if !domain_transfer.Retryable(err) {
		t.Fatalf("expected failed compensation to be retryable")
	}
}

func TestRefundBalance_UntypedLedgerError_WrappedAsRemoteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationCompleted, "")
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationFailed, "Insufficient funds")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).
		Return(restoreTx(id, domain_transfer.TransactionProcessing, "Insufficient funds"), nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{debit, credit}, nil)

	d.ledger.EXPECT().UpdateBalance(gomock.Any(), ledgerParams(destAccount, port_ledger.DirectionDebit)).
		Return(port_ledger.AccountBalance{}, errors.New("connection reset"))
	d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(credit, domain_transfer.OperationCompleted, domain_transfer.OperationCompleted, "connection reset")).
		Return(nil)

	err := p.RefundBalance(context.Background(), eventInput(id))

	var typed *domain_transfer.Error
	if !errors.As(err, &typed) || typed.Kind != domain_transfer.KindRemoteFailure {
		t.Fatalf("expected RemoteFailure, got %v", err)
	}
	if typed.TraceID != testCorrelationID {
		t.Fatalf("expected trace id %s, got %s", testCorrelationID, typed.TraceID)
	}
}

func TestRefundBalance_StrayPending_CancelledByCompensation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	debit := restoreOp(id, domain_transfer.OperationDebit, domain_transfer.OperationFailed, "Insufficient funds")
	credit := restoreOp(id, domain_transfer.OperationCredit, domain_transfer.OperationPending, "")

	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).
		Return(restoreTx(id, domain_transfer.TransactionProcessing, "Insufficient funds"), nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), id.String()).Return([]*domain_transfer.Operation{debit, credit}, nil)
	d.ledger.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Times(0)
	d.operations.EXPECT().
		UpdateStatus(gomock.Any(), opUpdate(credit, domain_transfer.OperationPending, domain_transfer.OperationFailed, "cancelled by compensation")).
		Return(nil)
	d.transactions.EXPECT().
		UpdateStatus(gomock.Any(), txUpdate(id, domain_transfer.TransactionProcessing, domain_transfer.TransactionFailed, "Insufficient funds")).
		Return(nil)

	if err := p.RefundBalance(context.Background(), eventInput(id)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRefundBalance_AlreadyFailed_NoOp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, d := newProcessor(ctrl)

	id := uuid.New()
	expectLock(d, id)
	d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).
		Return(restoreTx(id, domain_transfer.TransactionFailed, "Insufficient funds"), nil)
	d.operations.EXPECT().ListByTransactionID(gomock.Any(), gomock.Any()).Times(0)
	d.ledger.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Times(0)

	if err := p.RefundBalance(context.Background(), eventInput(id)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRefundBalance_UnexpectedStatus_InconsistentState(t *testing.T) {
	for _, status := range []domain_transfer.TransactionStatus{domain_transfer.TransactionSettled, domain_transfer.TransactionInQueue} {
		t.Run(string(status), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			p, d := newProcessor(ctrl)

			id := uuid.New()
			expectLock(d, id)
			d.transactions.EXPECT().GetByID(gomock.Any(), id.String()).Return(restoreTx(id, status, ""), nil)
			d.ledger.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Times(0)

			err := p.RefundBalance(context.Background(), eventInput(id))
			if !errors.Is(err, domain_transfer.ErrInconsistentState) {
				t.Fatalf("expected ErrInconsistentState, got %v", err)
			}
			if domain_transfer.Retryable(err) {
				t.Fatalf("inconsistent state must not be retried")
			}
		})
	}
}
