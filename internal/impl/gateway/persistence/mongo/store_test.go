package impl_mongo_test

import (
	"context"
	"testing"
	"time"

	domain_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/domain/transfer"
	impl_mongo "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/persistence/mongo"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const testDatabase = "transfers"

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get transaction decodes document", func(mt *mtest.T) {
		store := impl_mongo.NewStore(mt.Client, testDatabase)

		id := uuid.New()
		value, err := primitive.ParseDecimal128("100.50")
		require.NoError(mt, err)
		now := time.Now().UTC().Truncate(time.Millisecond)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDatabase+".transactions", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "value", Value: value},
			{Key: "status", Value: "Failed"},
			{Key: "error_detail", Value: "Insufficient funds"},
			{Key: "correlation_id", Value: "corr-1"},
			{Key: "request_hash", Value: ""},
			{Key: "created_at", Value: now},
			{Key: "updated_at", Value: now},
		}))

		tx, err := store.Transactions().GetByID(context.Background(), id.String())
		require.NoError(mt, err)
		assert.Equal(mt, id, tx.ID())
		assert.True(mt, tx.Value().Equal(decimal.RequireFromString("100.50")))
		assert.Equal(mt, domain_transfer.TransactionFailed, tx.Status())
		assert.Equal(mt, "Insufficient funds", tx.ErrorDetail())
	})

	mt.Run("missing transaction is not found", func(mt *mtest.T) {
		store := impl_mongo.NewStore(mt.Client, testDatabase)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDatabase+".transactions", mtest.FirstBatch))

		_, err := store.Transactions().GetByID(context.Background(), uuid.NewString())
		assert.ErrorIs(mt, err, port_persistence.ErrNotFound)
	})

	mt.Run("duplicate insert maps to already exists", func(mt *mtest.T) {
		store := impl_mongo.NewStore(mt.Client, testDatabase)

		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		tx, err := domain_transfer.NewTransaction(domain_transfer.NewTransactionParams{
			TransactionID: uuid.New(),
			Value:         decimal.NewFromInt(10),
			CorrelationID: "corr-1",
		})
		require.NoError(mt, err)

		assert.ErrorIs(mt, store.Transactions().Create(context.Background(), tx), port_persistence.ErrAlreadyExists)
	})

	mt.Run("update matching status succeeds", func(mt *mtest.T) {
		store := impl_mongo.NewStore(mt.Client, testDatabase)

		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := store.Operations().UpdateStatus(context.Background(), port_persistence.OperationStatusUpdate{
			ID:   uuid.NewString(),
			From: domain_transfer.OperationPending,
			To:   domain_transfer.OperationCompleted,
		})
		assert.NoError(mt, err)
	})

	mt.Run("update with stale status is a conflict", func(mt *mtest.T) {
		store := impl_mongo.NewStore(mt.Client, testDatabase)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, testDatabase+".transactions", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		err := store.Transactions().UpdateStatus(context.Background(), port_persistence.TransactionStatusUpdate{
			ID:   uuid.NewString(),
			From: domain_transfer.TransactionInQueue,
			To:   domain_transfer.TransactionProcessing,
		})
		assert.ErrorIs(mt, err, port_persistence.ErrStatusConflict)
	})

	mt.Run("update on unknown id is not found", func(mt *mtest.T) {
		store := impl_mongo.NewStore(mt.Client, testDatabase)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, testDatabase+".transactions", mtest.FirstBatch),
		)

		err := store.Transactions().UpdateStatus(context.Background(), port_persistence.TransactionStatusUpdate{
			ID:   uuid.NewString(),
			From: domain_transfer.TransactionInQueue,
			To:   domain_transfer.TransactionProcessing,
		})
		assert.ErrorIs(mt, err, port_persistence.ErrNotFound)
	})

	mt.Run("list operations decodes every document", func(mt *mtest.T) {
		store := impl_mongo.NewStore(mt.Client, testDatabase)

		txID := uuid.New()
		now := time.Now().UTC().Truncate(time.Millisecond)
		doc := func(opType, account string) bson.D {
			return bson.D{
				{Key: "_id", Value: uuid.NewString()},
				{Key: "transaction_id", Value: txID.String()},
				{Key: "account_number", Value: account},
				{Key: "type", Value: opType},
				{Key: "status", Value: "Pending"},
				{Key: "error_detail", Value: ""},
				{Key: "created_at", Value: now},
				{Key: "updated_at", Value: now},
			}
		}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, testDatabase+".operations", mtest.FirstBatch,
			doc("Debit", "A1"),
			doc("Credit", "A2"),
		))

		ops, err := store.Operations().ListByTransactionID(context.Background(), txID.String())
		require.NoError(mt, err)
		require.Len(mt, ops, 2)
		assert.Equal(mt, domain_transfer.OperationDebit, ops[0].Type())
		assert.Equal(mt, "A2", ops[1].AccountNumber())
		assert.Equal(mt, txID, ops[1].TransactionID())
	})
}
