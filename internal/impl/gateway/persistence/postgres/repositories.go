package impl_postgres

import (
	"context"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type transactionModel struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Value          decimal.Decimal `gorm:"column:value;type:numeric(20,2)"`
	Status         string          `gorm:"column:status"`
	ErrorDetail    string          `gorm:"column:error_detail"`
	CorrelationID  string          `gorm:"column:correlation_id"`
	IdempotencyKey *string         `gorm:"column:idempotency_key"`
	RequestHash    string          `gorm:"column:request_hash"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (transactionModel) TableName() string { return "transactions" }

type operationModel struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid"`
	AccountNumber string    `gorm:"column:account_number"`
	Type          string    `gorm:"column:type"`
	Status        string    `gorm:"column:status"`
	ErrorDetail   string    `gorm:"column:error_detail"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (operationModel) TableName() string { return "operations" }

type transactionRepository struct {
	db *gorm.DB
}

func (r *transactionRepository) Create(ctx context.Context, t *domain_transfer.Transaction) error {
	m := transactionModel{
		ID:            t.ID(),
		Value:         t.Value(),
		Status:        string(t.Status()),
		ErrorDetail:   t.ErrorDetail(),
		CorrelationID: t.CorrelationID(),
		RequestHash:   t.RequestHash(),
		CreatedAt:     t.CreatedAt(),
		UpdatedAt:     t.UpdatedAt(),
	}
	if key := t.IdempotencyKey(); key != "" {
		m.IdempotencyKey = &key
	}

	return translate(r.db.WithContext(ctx).Create(&m).Error)
}

func (r *transactionRepository) GetByID(ctx context.Context, transactionID string) (*domain_transfer.Transaction, error) {
	id, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, port_persistence.ErrNotFound
	}

	var m transactionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}

	return m.toDomain(), nil
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain_transfer.Transaction, error) {
	var m transactionModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		return nil, translate(err)
	}

	return m.toDomain(), nil
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, u port_persistence.TransactionStatusUpdate) error {
	if _, err := uuid.Parse(u.ID); err != nil {
		return port_persistence.ErrNotFound
	}

	res := r.db.WithContext(ctx).
		Model(&transactionModel{}).
		Where("id = ? AND status = ?", u.ID, string(u.From)).
		Updates(map[string]any{
			"status":       string(u.To),
			"error_detail": u.ErrorDetail,
			"updated_at":   u.UpdatedAt,
		})

	return casResult(ctx, r.db, &transactionModel{}, u.ID, res)
}

type operationRepository struct {
	db *gorm.DB
}

func (r *operationRepository) Create(ctx context.Context, op *domain_transfer.Operation) error {
	m := operationModel{
		ID:            op.ID(),
		TransactionID: op.TransactionID(),
		AccountNumber: op.AccountNumber(),
		Type:          string(op.Type()),
		Status:        string(op.Status()),
		ErrorDetail:   op.ErrorDetail(),
		CreatedAt:     op.CreatedAt(),
		UpdatedAt:     op.UpdatedAt(),
	}

	return translate(r.db.WithContext(ctx).Create(&m).Error)
}

func (r *operationRepository) GetByID(ctx context.Context, operationID string) (*domain_transfer.Operation, error) {
	id, err := uuid.Parse(operationID)
	if err != nil {
		return nil, port_persistence.ErrNotFound
	}

	var m operationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}

	return m.toDomain(), nil
}

func (r *operationRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]*domain_transfer.Operation, error) {
	id, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, nil
	}

	var rows []operationModel
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", id).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*domain_transfer.Operation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}

	return out, nil
}

func (r *operationRepository) UpdateStatus(ctx context.Context, u port_persistence.OperationStatusUpdate) error {
	if _, err := uuid.Parse(u.ID); err != nil {
		return port_persistence.ErrNotFound
	}

	res := r.db.WithContext(ctx).
		Model(&operationModel{}).
		Where("id = ? AND status = ?", u.ID, string(u.From)).
		Updates(map[string]any{
			"status":       string(u.To),
			"error_detail": u.ErrorDetail,
			"updated_at":   u.UpdatedAt,
		})

	return casResult(ctx, r.db, &operationModel{}, u.ID, res)
}

func (m transactionModel) toDomain() *domain_transfer.Transaction {
	var key string
	if m.IdempotencyKey != nil {
		key = *m.IdempotencyKey
	}

	return domain_transfer.RestoreTransaction(domain_transfer.RestoreTransactionParams{
		ID:             m.ID,
		Value:          m.Value,
		Status:         domain_transfer.TransactionStatus(m.Status),
		ErrorDetail:    m.ErrorDetail,
		CorrelationID:  m.CorrelationID,
		IdempotencyKey: key,
		RequestHash:    m.RequestHash,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	})
}

func (m operationModel) toDomain() *domain_transfer.Operation {
	return domain_transfer.RestoreOperation(domain_transfer.RestoreOperationParams{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		AccountNumber: m.AccountNumber,
		Type:          domain_transfer.OperationType(m.Type),
		Status:        domain_transfer.OperationStatus(m.Status),
		ErrorDetail:   m.ErrorDetail,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	})
}
