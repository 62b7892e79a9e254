package recordset

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOperation is returned by sort operations on record sets
	// whose order is fixed by their persistor
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrIndexOutOfRange is returned when an index lies beyond the records
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrPersistence matches every *PersistenceError
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError reports a persistor failure during a count or page load.
// The record set that returns it keeps the state it had before the call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
