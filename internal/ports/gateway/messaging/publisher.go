package messaging

import (
	"context"
)

const (
	QueueTransfer      = "transfer"
	QueueUpdateBalance = "update-balance"
	QueueRefundBalance = "refund-balance"
)

const (
	HeaderCorrelationID = "correlation_id"
	HeaderTraceparent   = "traceparent"
)

type Publisher interface {
	Publish(ctx context.Context, queue string, payload []byte, headers map[string]string) error
}

// TransactionMessage is the body of update-balance and refund-balance events.
type TransactionMessage struct {
	TransactionID string `json:"transactionId"`
}
