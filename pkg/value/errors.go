package value

import "github.com/pkg/errors"

var (
	// ErrWrongKind is returned when a typed accessor does not match the value kind
	ErrWrongKind = errors.New("wrong kind")
	// ErrNotComparable is returned when two values belong to different families
	ErrNotComparable = errors.New("not comparable")
)
