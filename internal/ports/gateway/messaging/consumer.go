package messaging

import (
	"context"
)

type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
)

func (o Outcome) String() string {
	if o == OutcomeRequeue {
		return "requeue"
	}
	return "ack"
}

// Done settles a delivery. Handlers call it exactly once.
type Done func(Outcome)

// Message is one delivery. MessageID is stable across redeliveries of the
// same publication; Attempt counts the earlier deliveries.
type Message struct {
	Queue       string
	MessageID   string
	Payload     []byte
	Headers     map[string]string
	Redelivered bool
	Attempt     int
}

type Handler func(ctx context.Context, msg Message, done Done)

// Consumer starts delivering messages of queue to handler in the background
// until ctx is cancelled. Each delivery runs on its own goroutine.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler Handler) error
}
