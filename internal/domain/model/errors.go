package model

import "errors"

// Sentinel kinds shared by the core operations. Callers match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("employee unavailable")
	ErrInvalidInput = errors.New("invalid input")
	ErrPersistence  = errors.New("persistence failed")
)
