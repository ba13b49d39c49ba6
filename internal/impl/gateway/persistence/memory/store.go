package impl_memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps transactions and operations in process memory. Reads return
// fresh entities so callers never share state through the store.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]transactionRecord
	byKey        map[string]string
	operations   map[string]operationRecord
	byTx         map[string][]string
}

type transactionRecord struct {
	id             uuid.UUID
	value          decimal.Decimal
	status         domain_transfer.TransactionStatus
	errorDetail    string
	correlationID  string
	idempotencyKey string
	requestHash    string
	createdAt      time.Time
	updatedAt      time.Time
}

type operationRecord struct {
	id            uuid.UUID
	transactionID uuid.UUID
	accountNumber string
	opType        domain_transfer.OperationType
	status        domain_transfer.OperationStatus
	errorDetail   string
	createdAt     time.Time
	updatedAt     time.Time
}

func NewStore() *Store {
	return &Store{
		transactions: map[string]transactionRecord{},
		byKey:        map[string]string{},
		operations:   map[string]operationRecord{},
		byTx:         map[string][]string{},
	}
}

// Transactions and Operations expose the store through the two repository ports.
func (s *Store) Transactions() port_persistence.TransactionRepository { return (*transactionRepo)(s) }

func (s *Store) Operations() port_persistence.OperationRepository { return (*operationRepo)(s) }

type transactionRepo Store

func (r *transactionRepo) Create(_ context.Context, t *domain_transfer.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := t.ID().String()
	if _, ok := r.transactions[id]; ok {
		return port_persistence.ErrAlreadyExists
	}

	if key := t.IdempotencyKey(); key != "" {
		if _, ok := r.byKey[key]; ok {
			return port_persistence.ErrAlreadyExists
		}
		r.byKey[key] = id
	}

	r.transactions[id] = transactionRecord{
		id:             t.ID(),
		value:          t.Value(),
		status:         t.Status(),
		errorDetail:    t.ErrorDetail(),
		correlationID:  t.CorrelationID(),
		idempotencyKey: t.IdempotencyKey(),
		requestHash:    t.RequestHash(),
		createdAt:      t.CreatedAt(),
		updatedAt:      t.UpdatedAt(),
	}

	return nil
}

func (r *transactionRepo) GetByID(_ context.Context, transactionID string) (*domain_transfer.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.transactions[transactionID]
	if !ok {
		return nil, port_persistence.ErrNotFound
	}

	return rec.restore(), nil
}

func (r *transactionRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain_transfer.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, port_persistence.ErrNotFound
	}

	return r.transactions[id].restore(), nil
}

func (r *transactionRepo) UpdateStatus(_ context.Context, u port_persistence.TransactionStatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.transactions[u.ID]
	if !ok {
		return port_persistence.ErrNotFound
	}

	if rec.status != u.From {
		return port_persistence.ErrStatusConflict
	}

	rec.status = u.To
	rec.errorDetail = u.ErrorDetail
	rec.updatedAt = u.UpdatedAt
	r.transactions[u.ID] = rec

	return nil
}

type operationRepo Store

func (r *operationRepo) Create(_ context.Context, op *domain_transfer.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := op.ID().String()
	if _, ok := r.operations[id]; ok {
		return port_persistence.ErrAlreadyExists
	}

	txID := op.TransactionID().String()
	r.operations[id] = operationRecord{
		id:            op.ID(),
		transactionID: op.TransactionID(),
		accountNumber: op.AccountNumber(),
		opType:        op.Type(),
		status:        op.Status(),
		errorDetail:   op.ErrorDetail(),
		createdAt:     op.CreatedAt(),
		updatedAt:     op.UpdatedAt(),
	}
	r.byTx[txID] = append(r.byTx[txID], id)

	return nil
}

func (r *operationRepo) GetByID(_ context.Context, operationID string) (*domain_transfer.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.operations[operationID]
	if !ok {
		return nil, port_persistence.ErrNotFound
	}

	return rec.restore(), nil
}

func (r *operationRepo) ListByTransactionID(_ context.Context, transactionID string) ([]*domain_transfer.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byTx[transactionID]
	out := make([]*domain_transfer.Operation, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.operations[id].restore())
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})

	return out, nil
}

func (r *operationRepo) UpdateStatus(_ context.Context, u port_persistence.OperationStatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.operations[u.ID]
	if !ok {
		return port_persistence.ErrNotFound
	}

	if rec.status != u.From {
		return port_persistence.ErrStatusConflict
	}

	rec.status = u.To
	rec.errorDetail = u.ErrorDetail
	rec.updatedAt = u.UpdatedAt
	r.operations[u.ID] = rec

	return nil
}

func (rec transactionRecord) restore() *domain_transfer.Transaction {
	return domain_transfer.RestoreTransaction(domain_transfer.RestoreTransactionParams{
		ID:             rec.id,
		Value:          rec.value,
		Status:         rec.status,
		ErrorDetail:    rec.errorDetail,
		CorrelationID:  rec.correlationID,
		IdempotencyKey: rec.idempotencyKey,
		RequestHash:    rec.requestHash,
		CreatedAt:      rec.createdAt,
		UpdatedAt:      rec.updatedAt,
	})
}

func (rec operationRecord) restore() *domain_transfer.Operation {
	return domain_transfer.RestoreOperation(domain_transfer.RestoreOperationParams{
		ID:            rec.id,
		TransactionID: rec.transactionID,
		AccountNumber: rec.accountNumber,
		Type:          rec.opType,
		Status:        rec.status,
		ErrorDetail:   rec.errorDetail,
		CreatedAt:     rec.createdAt,
		UpdatedAt:     rec.updatedAt,
	})
}
