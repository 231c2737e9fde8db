package idempotency

import "errors"

var (
	ErrKeyInvalid = errors.New("invalid idempotency key format")
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length")
	ErrNotFound   = errors.New("idempotency key not found")
)
