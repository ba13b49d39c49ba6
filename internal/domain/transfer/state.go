package domain_transfer

type TransactionStatus string

const (
	TransactionInQueue    TransactionStatus = "In Queue"
	TransactionProcessing TransactionStatus = "Processing"
	TransactionSettled    TransactionStatus = "Settled"
	TransactionFailed     TransactionStatus = "Failed"
)

func (s TransactionStatus) IsFinal() bool {
	return s == TransactionSettled || s == TransactionFailed
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionInQueue:
		return next == TransactionProcessing
	case TransactionProcessing:
		return next == TransactionSettled || next == TransactionFailed
	default:
		return false
	}
}

type OperationStatus string

const (
	OperationPending   OperationStatus = "Pending"
	OperationCompleted OperationStatus = "Completed"
	OperationFailed    OperationStatus = "Failed"
	OperationRefunded  OperationStatus = "Refunded"
)

// IsFinal reports whether the ledger call for the operation already resolved.
// Completed is final for the forward path; only compensation may move it on.
func (s OperationStatus) IsFinal() bool {
	return s == OperationCompleted || s == OperationFailed || s == OperationRefunded
}

func (s OperationStatus) CanTransitionTo(next OperationStatus) bool {
	switch s {
	case OperationPending:
		return next == OperationCompleted || next == OperationFailed
	case OperationCompleted:
		return next == OperationRefunded
	default:
		return false
	}
}

type OperationType string

const (
	OperationDebit  OperationType = "Debit"
	OperationCredit OperationType = "Credit"
)

func (t OperationType) IsValid() bool {
	return t == OperationDebit || t == OperationCredit
}

// Inverse returns the type that reverses a balance change of type t.
func (t OperationType) Inverse() OperationType {
	if t == OperationDebit {
		return OperationCredit
	}
	return OperationDebit
}
