package domain_transfer

import (
	"errors"
)

var (
	ErrInvalidTransactionID = errors.New("transfer: invalid transaction_id")
	ErrInvalidOperationID   = errors.New("transfer: invalid operation_id")
	ErrInvalidAccountNumber = errors.New("transfer: account_number is required")
	ErrInvalidOperationType = errors.New("transfer: operation type must be Debit or Credit")
	ErrInvalidValue         = errors.New("transfer: value must be > 0")
	ErrMissingCorrelationID = errors.New("transfer: correlation_id is required")

	ErrInvalidStateTransition = errors.New("transfer: invalid state transition")
	ErrAlreadyFinalized       = errors.New("transfer: already finalized")
	ErrMissingFailureReason   = errors.New("transfer: failure_reason is required")
)

// Kind classifies errors crossing the use case boundary.
type Kind string

const (
	KindRejected          Kind = "REJECTED"
	KindNotFound          Kind = "NOT_FOUND"
	KindRemoteFailure     Kind = "REMOTE_FAILURE"
	KindInconsistentState Kind = "INCONSISTENT_STATE"
)

// Sentinels matched by errors.Is against any *Error of the same Kind.
var (
	ErrRejected          = errors.New("rejected")
	ErrNotFound          = errors.New("not found")
	ErrRemoteFailure     = errors.New("remote failure")
	ErrInconsistentState = errors.New("inconsistent state")
)

// Error is the typed error surfaced by the saga, the processor and the
// ledger client. TraceID ties the error to the log line that reported it.
type Error struct {
	Kind       Kind
	Message    string
	TraceID    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrRemoteFailure:
		return e.Kind == KindRemoteFailure
	case ErrInconsistentState:
		return e.Kind == KindInconsistentState
	}
	return false
}

func Rejected(traceID, message string) *Error {
	return &Error{Kind: KindRejected, Message: message, TraceID: traceID, StatusCode: 409}
}

func NotFound(traceID, message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, TraceID: traceID, StatusCode: 404}
}

func RemoteFailure(traceID string, statusCode int, message string, cause error) *Error {
	return &Error{Kind: KindRemoteFailure, Message: message, TraceID: traceID, StatusCode: statusCode, Err: cause}
}

func InconsistentState(traceID, message string, cause error) *Error {
	return &Error{Kind: KindInconsistentState, Message: message, TraceID: traceID, StatusCode: 500, Err: cause}
}

// Retryable reports whether a handler failing with err should have its
// message redelivered. Untyped errors come from storage, lock or channel
// infrastructure and are treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == KindRemoteFailure
	}

	return true
}
