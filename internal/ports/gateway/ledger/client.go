package port_ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionDebit  Direction = "Debit"
	DirectionCredit Direction = "Credit"
)

type AccountBalance struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

type UpdateBalanceParams struct {
	AccountNumber string
	Amount        decimal.Decimal
	Direction     Direction
}

// Client talks to the external account service. Failures are returned as
// *domain_transfer.Error of kind RemoteFailure.
//
// UpdateBalance succeeds once the movement is accepted. The returned balance
// is read back afterwards and is left zero when that read fails.
type Client interface {
	GetAccounts(ctx context.Context) ([]AccountBalance, error)
	GetBalance(ctx context.Context, accountNumber string) (AccountBalance, error)
	UpdateBalance(ctx context.Context, params UpdateBalanceParams) (AccountBalance, error)
}
