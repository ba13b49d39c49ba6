package port_operation

import "context"

type BalanceEventInput struct {
	TransactionID string
	CorrelationID string
}

// BalanceProcessor drives a transaction's operations forward on
// update-balance and compensates them on refund-balance.
type BalanceProcessor interface {
	UpdateBalance(ctx context.Context, input BalanceEventInput) error
	RefundBalance(ctx context.Context, input BalanceEventInput) error
}
