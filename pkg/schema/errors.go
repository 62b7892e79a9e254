package schema

import "github.com/pkg/errors"

var (
	ErrFieldNotFound  = errors.New("field not found")
	ErrDuplicateField = errors.New("duplicate field alias")
	// ErrArityMismatch is returned when keys or orders of different length meet
	ErrArityMismatch = errors.New("arity mismatch")
	// ErrMissingValue is returned when a required field is null
	ErrMissingValue = errors.New("missing value")
)
