package simulate

import "errors"

var (
	// ErrInvalidConfig marks a Config that failed validation.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrUnhealthy is returned when the service does not answer /healthz.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrStatus wraps an unexpected HTTP status.
	ErrStatus = errors.New("unexpected status")
	// ErrInvariant is returned when verification finds violations.
	ErrInvariant = errors.New("invariant violated")
)
