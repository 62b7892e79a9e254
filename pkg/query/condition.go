// Package query implements the predicate algebra used to filter records:
// single-field conditions, AND/OR criteria trees over them and the key
// bounds record sets use to resume a scan.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/value"
)

// Condition is a single predicate over one field
type Condition struct {
	Field    *schema.Field
	Operator Operator
	Values   []*value.Value

	folded []*value.Value // upper-cased operands of NOCASE operators
}

// NewCondition validates the operand count and kinds against the operator
// and field
func NewCondition(field *schema.Field, op Operator, values ...*value.Value) (*Condition, error) {
	if field == nil {
		return nil, errors.Wrap(ErrInvalidCondition, "nil field")
	}
	if !op.Valid() {
		return nil, errors.Wrapf(ErrInvalidCondition, "operator %s", op)
	}
	min, max := op.Arity()
	if len(values) < min || (max >= 0 && len(values) > max) {
		return nil, errors.Wrapf(ErrInvalidCondition, "%s takes %s values, got %d", op, arityText(min, max), len(values))
	}
	if (op.NoCase || op.Base.isLike()) && field.Kind != value.KindString {
		return nil, errors.Wrapf(ErrInvalidCondition, "%s requires a string field, %q is %s", op, field.Key(), field.Kind)
	}

	c := &Condition{Field: field, Operator: op, Values: make([]*value.Value, len(values))}
	for i, v := range values {
		if v == nil {
			return nil, errors.Wrapf(ErrInvalidCondition, "%s: value %d is nil", op, i)
		}
		if !field.Kind.Compatible(v.Kind()) {
			return nil, errors.Wrapf(ErrInvalidCondition, "%s: %s value for %s field %q", op, v.Kind(), field.Kind, field.Key())
		}
		if (op.NoCase || op.Base.isLike()) && v.Kind() != value.KindString {
			return nil, errors.Wrapf(ErrInvalidCondition, "%s requires string values, got %s", op, v.Kind())
		}
		c.Values[i] = v.Copy()
	}
	if op.NoCase {
		c.folded = make([]*value.Value, len(c.Values))
		for i, v := range c.Values {
			c.folded[i] = upper(v)
		}
	}
	return c, nil
}

// MustCondition is like NewCondition but panics on error
func MustCondition(field *schema.Field, op Operator, values ...*value.Value) *Condition {
	c, err := NewCondition(field, op, values...)
	if err != nil {
		panic(err)
	}
	return c
}

// Check evaluates the condition against v
func (c *Condition) Check(v *value.Value) (bool, error) {
	if v == nil {
		v = c.Field.NewValue()
	}
	operands := c.Values
	if c.Operator.NoCase {
		v = upper(v)
		operands = c.folded
	}
	ok, err := c.check(v, operands)
	if err != nil {
		return false, errors.WithMessagef(err, "check %s", c)
	}
	if c.Operator.Negated {
		return !ok, nil
	}
	return ok, nil
}

// CheckRecord evaluates the condition against the record value stored for
// the condition field. A record without that field does not match.
func (c *Condition) CheckRecord(r *schema.Record) (bool, error) {
	v, ok := r.Value(c.Field.Key())
	if !ok {
		return false, nil
	}
	return c.Check(v)
}

func (c *Condition) check(v *value.Value, operands []*value.Value) (bool, error) {
	switch c.Operator.Base {
	case CompareIsNull:
		return v.IsNull(), nil
	case CompareInList:
		for _, operand := range operands {
			if v.Equal(operand) {
				return true, nil
			}
		}
		if !v.Kind().Compatible(operands[0].Kind()) {
			return false, errors.Wrapf(value.ErrNotComparable, "%s value against %s list", v.Kind(), operands[0].Kind())
		}
		return false, nil
	case CompareBetween:
		lo, err := v.Compare(operands[0])
		if err != nil {
			return false, err
		}
		hi, err := v.Compare(operands[1])
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi <= 0, nil
	case CompareLikeLeft, CompareLikeMid, CompareLikeRight:
		if v.IsNull() || operands[0].IsNull() {
			return false, nil
		}
		s, err := v.AsString()
		if err != nil {
			return false, err
		}
		pattern, _ := operands[0].AsString()
		switch c.Operator.Base {
		case CompareLikeLeft:
			return strings.HasPrefix(s, pattern), nil
		case CompareLikeRight:
			return strings.HasSuffix(s, pattern), nil
		}
		return strings.Contains(s, pattern), nil
	}

	cmp, err := v.Compare(operands[0])
	if err != nil {
		return false, err
	}
	switch c.Operator.Base {
	case CompareEQ:
		return cmp == 0, nil
	case CompareGT:
		return cmp > 0, nil
	case CompareGE:
		return cmp >= 0, nil
	case CompareLT:
		return cmp < 0, nil
	case CompareLE:
		return cmp <= 0, nil
	case CompareNE:
		return cmp != 0, nil
	}
	return false, errors.Wrapf(ErrInvalidCondition, "operator %s", c.Operator)
}

func (c *Condition) String() string {
	if len(c.Values) == 0 {
		return fmt.Sprintf("%s %s", c.Field.Key(), c.Operator)
	}
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = v.String()
		if v.Kind() == value.KindString && !v.IsNull() {
			parts[i] = "'" + parts[i] + "'"
		}
	}
	return fmt.Sprintf("%s %s %s", c.Field.Key(), c.Operator, strings.Join(parts, ", "))
}

// writeKey writes the field, the operator and the JSON form of every operand.
// Operand kinds follow the field, so JSON is enough to tell operands apart.
func (c *Condition) writeKey(b *strings.Builder) {
	b.WriteString(strconv.Quote(c.Field.Key()))
	b.WriteByte(' ')
	b.WriteString(c.Operator.String())
	for _, v := range c.Values {
		b.WriteByte(' ')
		text, err := json.Marshal(v)
		if err != nil {
			text = []byte(strconv.Quote(v.String()))
		}
		b.Write(text)
	}
}

func upper(v *value.Value) *value.Value {
	if v.Kind() != value.KindString || v.IsNull() {
		return v
	}
	s, _ := v.AsString()
	return value.NewString(strings.ToUpper(s))
}

func arityText(min, max int) string {
	switch {
	case max < 0:
		return fmt.Sprintf("at least %d", min)
	case min == max:
		return fmt.Sprint(min)
	}
	return fmt.Sprintf("%d to %d", min, max)
}
