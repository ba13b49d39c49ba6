package impl_mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	transactionsCollection = "transactions"
	operationsCollection   = "operations"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return NewStore(client, database), nil
}

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// EnsureIndexes creates the idempotency key and operation lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(transactionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "idempotency_key", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
	})
	if err != nil {
		return fmt.Errorf("create transactions index: %w", err)
	}

	_, err = s.db.Collection(operationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "type", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create operations indexes: %w", err)
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Transactions() port_persistence.TransactionRepository {
	return &transactionRepository{coll: s.db.Collection(transactionsCollection)}
}

func (s *Store) Operations() port_persistence.OperationRepository {
	return &operationRepository{coll: s.db.Collection(operationsCollection)}
}

type transactionDocument struct {
	ID             string               `bson:"_id"`
	Value          primitive.Decimal128 `bson:"value"`
	Status         string               `bson:"status"`
	ErrorDetail    string               `bson:"error_detail"`
	CorrelationID  string               `bson:"correlation_id"`
	IdempotencyKey string               `bson:"idempotency_key,omitempty"`
	RequestHash    string               `bson:"request_hash"`
	CreatedAt      time.Time            `bson:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

type operationDocument struct {
	ID            string    `bson:"_id"`
	TransactionID string    `bson:"transaction_id"`
	AccountNumber string    `bson:"account_number"`
	Type          string    `bson:"type"`
	Status        string    `bson:"status"`
	ErrorDetail   string    `bson:"error_detail"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type transactionRepository struct {
	coll *mongo.Collection
}

func (r *transactionRepository) Create(ctx context.Context, t *domain_transfer.Transaction) error {
	value, err := primitive.ParseDecimal128(t.Value().String())
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}

	_, err = r.coll.InsertOne(ctx, transactionDocument{
		ID:             t.ID().String(),
		Value:          value,
		Status:         string(t.Status()),
		ErrorDetail:    t.ErrorDetail(),
		CorrelationID:  t.CorrelationID(),
		IdempotencyKey: t.IdempotencyKey(),
		RequestHash:    t.RequestHash(),
		CreatedAt:      t.CreatedAt(),
		UpdatedAt:      t.UpdatedAt(),
	})
	return translate(err)
}

func (r *transactionRepository) GetByID(ctx context.Context, transactionID string) (*domain_transfer.Transaction, error) {
	return r.findOne(ctx, bson.M{"_id": transactionID})
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain_transfer.Transaction, error) {
	return r.findOne(ctx, bson.M{"idempotency_key": key})
}

func (r *transactionRepository) findOne(ctx context.Context, filter bson.M) (*domain_transfer.Transaction, error) {
	var doc transactionDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toDomain()
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, u port_persistence.TransactionStatusUpdate) error {
	return compareAndSet(ctx, r.coll, u.ID, string(u.From), bson.M{
		"status":       string(u.To),
		"error_detail": u.ErrorDetail,
		"updated_at":   u.UpdatedAt,
	})
}

type operationRepository struct {
	coll *mongo.Collection
}

func (r *operationRepository) Create(ctx context.Context, op *domain_transfer.Operation) error {
	_, err := r.coll.InsertOne(ctx, operationDocument{
		ID:            op.ID().String(),
		TransactionID: op.TransactionID().String(),
		AccountNumber: op.AccountNumber(),
		Type:          string(op.Type()),
		Status:        string(op.Status()),
		ErrorDetail:   op.ErrorDetail(),
		CreatedAt:     op.CreatedAt(),
		UpdatedAt:     op.UpdatedAt(),
	})
	return translate(err)
}

func (r *operationRepository) GetByID(ctx context.Context, operationID string) (*domain_transfer.Operation, error) {
	var doc operationDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": operationID}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toDomain()
}

func (r *operationRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]*domain_transfer.Operation, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"transaction_id": transactionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []operationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*domain_transfer.Operation, 0, len(docs))
	for _, doc := range docs {
		op, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}

	return out, nil
}

func (r *operationRepository) UpdateStatus(ctx context.Context, u port_persistence.OperationStatusUpdate) error {
	return compareAndSet(ctx, r.coll, u.ID, string(u.From), bson.M{
		"status":       string(u.To),
		"error_detail": u.ErrorDetail,
		"updated_at":   u.UpdatedAt,
	})
}

func compareAndSet(ctx context.Context, coll *mongo.Collection, id, from string, set bson.M) error {
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}

	if res.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}

	if n == 0 {
		return port_persistence.ErrNotFound
	}

	return port_persistence.ErrStatusConflict
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return port_persistence.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return port_persistence.ErrAlreadyExists
	default:
		return err
	}
}

func (d transactionDocument) toDomain() (*domain_transfer.Transaction, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode transaction id %q: %w", d.ID, err)
	}

	value, err := decimal.NewFromString(d.Value.String())
	if err != nil {
		return nil, fmt.Errorf("decode transaction value: %w", err)
	}

	return domain_transfer.RestoreTransaction(domain_transfer.RestoreTransactionParams{
		ID:             id,
		Value:          value,
		Status:         domain_transfer.TransactionStatus(d.Status),
		ErrorDetail:    d.ErrorDetail,
		CorrelationID:  d.CorrelationID,
		IdempotencyKey: d.IdempotencyKey,
		RequestHash:    d.RequestHash,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}), nil
}

func (d operationDocument) toDomain() (*domain_transfer.Operation, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode operation id %q: %w", d.ID, err)
	}

	txID, err := uuid.Parse(d.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("decode operation transaction id %q: %w", d.TransactionID, err)
	}

	return domain_transfer.RestoreOperation(domain_transfer.RestoreOperationParams{
		ID:            id,
		TransactionID: txID,
		AccountNumber: d.AccountNumber,
		Type:          domain_transfer.OperationType(d.Type),
		Status:        domain_transfer.OperationStatus(d.Status),
		ErrorDetail:   d.ErrorDetail,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}), nil
}
