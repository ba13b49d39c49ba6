// Package mocks provides mock implementations for testing purposes.
package mocks

//go:generate mockgen -destination=mock_persistence.go -package=mocks github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence TransactionRepository,OperationRepository
//go:generate mockgen -destination=mock_messaging.go -package=mocks github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging Publisher,Consumer
//go:generate mockgen -destination=mock_platform.go -package=mocks github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/platform Clock,IDGenerator,Locker
//go:generate mockgen -destination=mock_ledger.go -package=mocks github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/ledger Client
//go:generate mockgen -destination=mock_usecase_transfer.go -package=mocks github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/transfer TransferUseCase,GetStatusUseCase
//go:generate mockgen -destination=mock_usecase_operation.go -package=mocks github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/operation BalanceProcessor
