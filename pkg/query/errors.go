package query

import "github.com/pkg/errors"

// ErrInvalidCondition is returned when a condition is built with the wrong
// number or kind of operand values
var ErrInvalidCondition = errors.New("invalid condition")
