package impl_transfer

import "errors"

var (
	ErrIdempotencyConflict = errors.New("idempotency key conflict: different payload for same key")
	ErrInvalidInput        = errors.New("invalid input data")
)

const (
	msgSameAccount         = "An operation cannot be carried out between the same account"
	msgInvalidValue        = "Transfer value must be greater than zero"
	msgValuePrecision      = "Transfer value must have at most two decimal places"
	msgValueTooLarge       = "Transfer value is too large"
	msgIdempotencyConflict = "Idempotency key already used with a different request"
)
