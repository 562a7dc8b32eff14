package directory

import "errors"

// ErrDuplicateID is returned when a roster contains the same employee id twice.
var ErrDuplicateID = errors.New("duplicate employee id")
