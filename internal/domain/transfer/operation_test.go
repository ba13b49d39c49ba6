package domain_transfer_test

import (
	"errors"
	"testing"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	"github.com/google/uuid"
)

func newPendingOperation(t *testing.T, opType domain_transfer.OperationType) *domain_transfer.Operation {
	t.Helper()

	op, err := domain_transfer.NewOperation(domain_transfer.NewOperationParams{
		OperationID:   uuid.New(),
		TransactionID: uuid.New(),
		AccountNumber: "A1",
		Type:          opType,
		Now:           time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	return op
}

func TestNewOperation(t *testing.T) {
	opID := uuid.New()
	txID := uuid.New()

	t.Run("creates pending operation", func(t *testing.T) {
		op, err := domain_transfer.NewOperation(domain_transfer.NewOperationParams{
			OperationID:   opID,
			TransactionID: txID,
			AccountNumber: " A1 ",
			Type:          domain_transfer.OperationDebit,
		})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if op.ID() != opID || op.TransactionID() != txID {
			t.Errorf("expected ids %v/%v, got %v/%v", opID, txID, op.ID(), op.TransactionID())
		}

		if op.AccountNumber() != "A1" {
			t.Errorf("expected account A1, got %q", op.AccountNumber())
		}

		if op.Status() != domain_transfer.OperationPending {
			t.Errorf("expected status Pending, got %v", op.Status())
		}
	})

	errorTests := []struct {
		name      string
		params    domain_transfer.NewOperationParams
		wantError error
	}{
		{
			name:      "returns error when operation id is nil",
			params:    domain_transfer.NewOperationParams{TransactionID: txID, AccountNumber: "A1", Type: domain_transfer.OperationDebit},
			wantError: domain_transfer.ErrInvalidOperationID,
		},
		{
			name:      "returns error when transaction id is nil",
			params:    domain_transfer.NewOperationParams{OperationID: opID, AccountNumber: "A1", Type: domain_transfer.OperationDebit},
			wantError: domain_transfer.ErrInvalidTransactionID,
		},
		{
			name:      "returns error when account is empty",
			params:    domain_transfer.NewOperationParams{OperationID: opID, TransactionID: txID, AccountNumber: " ", Type: domain_transfer.OperationCredit},
			wantError: domain_transfer.ErrInvalidAccountNumber,
		},
		{
			name:      "returns error when type is unknown",
			params:    domain_transfer.NewOperationParams{OperationID: opID, TransactionID: txID, AccountNumber: "A1", Type: "Swap"},
			wantError: domain_transfer.ErrInvalidOperationType,
		},
	}

	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain_transfer.NewOperation(tt.params)

			if !errors.Is(err, tt.wantError) {
				t.Errorf("expected error %v, got %v", tt.wantError, err)
			}
		})
	}
}

func TestOperation_StateMachine(t *testing.T) {
	now := time.Now().UTC()

	t.Run("pending to completed to refunded", func(t *testing.T) {
		op := newPendingOperation(t, domain_transfer.OperationDebit)

		if err := op.Complete(now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		op.RecordError("reverse failed", now)
		if op.Status() != domain_transfer.OperationCompleted {
			t.Errorf("expected RecordError to keep status, got %v", op.Status())
		}

		if err := op.Refund(now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if op.Status() != domain_transfer.OperationRefunded {
			t.Errorf("expected status Refunded, got %v", op.Status())
		}

		if op.ErrorDetail() != "" {
			t.Errorf("expected error detail cleared after refund, got %s", op.ErrorDetail())
		}
	})

	t.Run("pending to failed records detail", func(t *testing.T) {
		op := newPendingOperation(t, domain_transfer.OperationCredit)

		if err := op.Fail("upstream 500", now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if op.ErrorDetail() != "upstream 500" {
			t.Errorf("expected detail 'upstream 500', got %s", op.ErrorDetail())
		}
	})

	transitions := []struct {
		name      string
		prepare   func(*domain_transfer.Operation)
		apply     func(*domain_transfer.Operation) error
		wantError error
	}{
		{
			name:      "pending cannot be refunded",
			prepare:   func(*domain_transfer.Operation) {},
			apply:     func(op *domain_transfer.Operation) error { return op.Refund(now) },
			wantError: domain_transfer.ErrInvalidStateTransition,
		},
		{
			name:      "completed cannot complete again",
			prepare:   func(op *domain_transfer.Operation) { _ = op.Complete(now) },
			apply:     func(op *domain_transfer.Operation) error { return op.Complete(now) },
			wantError: domain_transfer.ErrInvalidStateTransition,
		},
		{
			name:      "completed cannot fail",
			prepare:   func(op *domain_transfer.Operation) { _ = op.Complete(now) },
			apply:     func(op *domain_transfer.Operation) error { return op.Fail("late", now) },
			wantError: domain_transfer.ErrInvalidStateTransition,
		},
		{
			name:      "failed is final",
			prepare:   func(op *domain_transfer.Operation) { _ = op.Fail("boom", now) },
			apply:     func(op *domain_transfer.Operation) error { return op.Complete(now) },
			wantError: domain_transfer.ErrAlreadyFinalized,
		},
		{
			name: "refunded is final",
			prepare: func(op *domain_transfer.Operation) {
				_ = op.Complete(now)
				_ = op.Refund(now)
			},
			apply:     func(op *domain_transfer.Operation) error { return op.Refund(now) },
			wantError: domain_transfer.ErrAlreadyFinalized,
		},
		{
			name:      "fail requires a reason",
			prepare:   func(*domain_transfer.Operation) {},
			apply:     func(op *domain_transfer.Operation) error { return op.Fail("", now) },
			wantError: domain_transfer.ErrMissingFailureReason,
		},
	}

	for _, tt := range transitions {
		t.Run(tt.name, func(t *testing.T) {
			op := newPendingOperation(t, domain_transfer.OperationDebit)
			tt.prepare(op)

			if err := tt.apply(op); !errors.Is(err, tt.wantError) {
				t.Errorf("expected error %v, got %v", tt.wantError, err)
			}
		})
	}
}

func TestOperationType_Inverse(t *testing.T) {
	if domain_transfer.OperationDebit.Inverse() != domain_transfer.OperationCredit {
		t.Error("expected inverse of Debit to be Credit")
	}

	if domain_transfer.OperationCredit.Inverse() != domain_transfer.OperationDebit {
		t.Error("expected inverse of Credit to be Debit")
	}
}
