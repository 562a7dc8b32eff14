package idempotency

import "errors"

var (
	// ErrInFlight is returned when another request currently holds the key.
	ErrInFlight = errors.New("idempotency key in flight")
	// ErrCommitted is returned by Begin when key already has a committed
	// response; the caller should replay it via Lookup.
	ErrCommitted = errors.New("idempotency key already committed")
)
