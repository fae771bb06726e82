package types

import "errors"

// Record-related errors
var (
	// ErrFieldNotFound is returned when a projection names a field the record does not declare
	ErrFieldNotFound = errors.New("field not found")
)
