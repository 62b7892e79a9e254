// Package value implements the typed scalar used by records, conditions and
// sort keys.
//
// A Value carries exactly one kind of payload (see Kind) for its whole
// lifetime. Null is a state of the payload, not a separate kind, so a null
// integer is still an integer and can only ever hold integers.
//
// # Ordering
//
// Values of the same Family are totally ordered, with null sorting before any
// non-null value. Numbers compare by magnitude across kinds, so an integer 3
// equals a decimal 3.00. Comparing values of different families fails with
// ErrNotComparable.
//
// # Mutation
//
// Setters convert within the family of the value kind and mark the value as
// modified. A Value is not safe for concurrent mutation; use Copy to hand a
// value to another goroutine.
package value

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnsetScale marks a decimal value without a fixed scale
const UnsetScale int32 = -1

// Value is a self-describing scalar
type Value struct {
	kind     Kind
	raw      any // nil when the value is null
	scale    int32
	modified bool
	label    string
}

// Null returns a null value of the given kind
func Null(kind Kind) *Value {
	return &Value{kind: kind, scale: UnsetScale}
}

// NullDecimal returns a null decimal value that rounds assignments to scale
func NullDecimal(scale int32) *Value {
	return &Value{kind: KindDecimal, scale: scale}
}

func NewBoolean(b bool) *Value {
	return &Value{kind: KindBoolean, raw: b, scale: UnsetScale}
}

func NewString(s string) *Value {
	return &Value{kind: KindString, raw: s, scale: UnsetScale}
}

// NewDecimal creates a decimal value rounded half-up to scale.
// A negative scale keeps the decimal as given.
func NewDecimal(d decimal.Decimal, scale int32) *Value {
	if scale < 0 {
		scale = UnsetScale
	}
	v := &Value{kind: KindDecimal, scale: scale}
	v.raw = v.roundDecimal(d)
	return v
}

func NewDouble(f float64) *Value {
	return &Value{kind: KindDouble, raw: f, scale: UnsetScale}
}

func NewInteger(i int32) *Value {
	return &Value{kind: KindInteger, raw: i, scale: UnsetScale}
}

func NewLong(l int64) *Value {
	return &Value{kind: KindLong, raw: l, scale: UnsetScale}
}

// NewDate creates a date value; the clock part of t is dropped
func NewDate(t time.Time) *Value {
	return &Value{kind: KindDate, raw: truncateDate(t), scale: UnsetScale}
}

// NewTime creates a time-of-day value; the date part of t is dropped
func NewTime(t time.Time) *Value {
	return &Value{kind: KindTime, raw: truncateTime(t), scale: UnsetScale}
}

func NewTimestamp(t time.Time) *Value {
	return &Value{kind: KindTimestamp, raw: t, scale: UnsetScale}
}

// NewBytes creates a byte sequence value. A nil slice creates a null value.
func NewBytes(b []byte) *Value {
	v := &Value{kind: KindBytes, scale: UnsetScale}
	if b != nil {
		v.raw = b
	}
	return v
}

// NewArray creates a nested value sequence. A nil slice creates a null value.
func NewArray(items []*Value) *Value {
	v := &Value{kind: KindArray, scale: UnsetScale}
	if items != nil {
		v.raw = items
	}
	return v
}

// Kind returns the immutable kind of the value
func (v *Value) Kind() Kind {
	return v.kind
}

// Scale returns the decimal scale, or UnsetScale
func (v *Value) Scale() int32 {
	return v.scale
}

func (v *Value) IsNull() bool {
	return v.raw == nil
}

// IsEmpty reports null values, empty strings, empty sequences and numeric zero
func (v *Value) IsEmpty() bool {
	if v.raw == nil {
		return true
	}
	switch p := v.raw.(type) {
	case string:
		return p == ""
	case decimal.Decimal:
		return p.IsZero()
	case float64:
		return p == 0
	case int32:
		return p == 0
	case int64:
		return p == 0
	case []byte:
		return len(p) == 0
	case []*Value:
		return len(p) == 0
	}
	return false
}

// IsBlank reports empty values and strings made only of whitespace
func (v *Value) IsBlank() bool {
	if v.IsEmpty() {
		return true
	}
	s, ok := v.raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

func (v *Value) Modified() bool {
	return v.modified
}

func (v *Value) SetModified(modified bool) {
	v.modified = modified
}

func (v *Value) Label() string {
	return v.label
}

func (v *Value) SetLabel(label string) {
	v.label = label
}

// Copy returns a value independent of v for any later mutation
func (v *Value) Copy() *Value {
	c := *v
	switch p := v.raw.(type) {
	case []byte:
		c.raw = append([]byte{}, p...)
	case []*Value:
		items := make([]*Value, len(p))
		for i, item := range p {
			if item != nil {
				items[i] = item.Copy()
			}
		}
		c.raw = items
	}
	return &c
}

// Interface returns the raw payload, or nil for null values
func (v *Value) Interface() any {
	return v.raw
}

func (v *Value) String() string {
	if v.raw == nil {
		return "null"
	}
	switch p := v.raw.(type) {
	case bool:
		if p {
			return "true"
		}
		return "false"
	case string:
		return p
	case decimal.Decimal:
		if v.scale >= 0 {
			return p.StringFixed(v.scale)
		}
		return p.String()
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return strconv.FormatFloat(p, 'g', -1, 64)
		}
		return decimal.NewFromFloat(p).String()
	case int32:
		return decimal.NewFromInt32(p).String()
	case int64:
		return decimal.NewFromInt(p).String()
	case time.Time:
		switch v.kind {
		case KindDate:
			return p.Format(time.DateOnly)
		case KindTime:
			return p.Format(time.TimeOnly)
		}
		return p.Format(time.RFC3339Nano)
	case []byte:
		return hex.EncodeToString(p)
	case []*Value:
		parts := make([]string, len(p))
		for i, item := range p {
			if item == nil {
				parts[i] = "null"
				continue
			}
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}

func (v *Value) roundDecimal(d decimal.Decimal) decimal.Decimal {
	if v.scale >= 0 {
		return d.Round(v.scale)
	}
	return d
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func truncateTime(t time.Time) time.Time {
	return time.Date(1970, time.January, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
