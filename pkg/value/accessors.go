package value

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Typed getters return the zero value and no error for null values.

func (v *Value) AsBoolean() (bool, error) {
	if err := v.expect(FamilyBoolean, "boolean"); err != nil {
		return false, err
	}
	b, _ := v.raw.(bool)
	return b, nil
}

func (v *Value) AsString() (string, error) {
	if err := v.expect(FamilyString, "string"); err != nil {
		return "", err
	}
	s, _ := v.raw.(string)
	return s, nil
}

// AsInteger truncates fractional and out of range values like a Go conversion
func (v *Value) AsInteger() (int32, error) {
	l, err := v.AsLong()
	return int32(l), err
}

func (v *Value) AsLong() (int64, error) {
	if err := v.expect(FamilyNumber, "long"); err != nil {
		return 0, err
	}
	if v.raw == nil {
		return 0, nil
	}
	return v.truncated(), nil
}

func (v *Value) AsDouble() (float64, error) {
	if err := v.expect(FamilyNumber, "double"); err != nil {
		return 0, err
	}
	return v.floatPayload(), nil
}

func (v *Value) AsDecimal() (decimal.Decimal, error) {
	if err := v.expect(FamilyNumber, "decimal"); err != nil {
		return decimal.Zero, err
	}
	return v.decimalPayload(), nil
}

func (v *Value) AsDate() (time.Time, error) {
	t, err := v.temporal("date")
	if err != nil || t.IsZero() {
		return t, err
	}
	return truncateDate(t), nil
}

func (v *Value) AsTime() (time.Time, error) {
	t, err := v.temporal("time")
	if err != nil || t.IsZero() {
		return t, err
	}
	return truncateTime(t), nil
}

func (v *Value) AsTimestamp() (time.Time, error) {
	return v.temporal("timestamp")
}

func (v *Value) AsBytes() ([]byte, error) {
	if err := v.expect(FamilyBytes, "bytes"); err != nil {
		return nil, err
	}
	b, _ := v.raw.([]byte)
	return b, nil
}

func (v *Value) AsArray() ([]*Value, error) {
	if err := v.expect(FamilyArray, "array"); err != nil {
		return nil, err
	}
	items, _ := v.raw.([]*Value)
	return items, nil
}

// Setters convert within the family of the value kind and mark the value modified.

func (v *Value) SetNull() {
	v.raw = nil
	v.modified = true
}

func (v *Value) SetBoolean(b bool) error {
	if err := v.expect(FamilyBoolean, "boolean"); err != nil {
		return err
	}
	v.set(b)
	return nil
}

func (v *Value) SetString(s string) error {
	if err := v.expect(FamilyString, "string"); err != nil {
		return err
	}
	v.set(s)
	return nil
}

func (v *Value) SetDecimal(d decimal.Decimal) error {
	return v.assignNumber(&Value{kind: KindDecimal, raw: d})
}

func (v *Value) SetDouble(f float64) error {
	return v.assignNumber(&Value{kind: KindDouble, raw: f})
}

func (v *Value) SetInteger(i int32) error {
	return v.assignNumber(&Value{kind: KindInteger, raw: i})
}

func (v *Value) SetLong(l int64) error {
	return v.assignNumber(&Value{kind: KindLong, raw: l})
}

func (v *Value) SetDate(t time.Time) error {
	return v.assignTemporal(truncateDate(t), "date")
}

func (v *Value) SetTime(t time.Time) error {
	return v.assignTemporal(truncateTime(t), "time")
}

func (v *Value) SetTimestamp(t time.Time) error {
	return v.assignTemporal(t, "timestamp")
}

// SetBytes stores b as is; a nil slice sets the value to null
func (v *Value) SetBytes(b []byte) error {
	if err := v.expect(FamilyBytes, "bytes"); err != nil {
		return err
	}
	if b == nil {
		v.SetNull()
		return nil
	}
	v.set(b)
	return nil
}

// SetArray stores items as is; a nil slice sets the value to null
func (v *Value) SetArray(items []*Value) error {
	if err := v.expect(FamilyArray, "array"); err != nil {
		return err
	}
	if items == nil {
		v.SetNull()
		return nil
	}
	v.set(items)
	return nil
}

// Assign copies the payload of other into v, converting within the family
func (v *Value) Assign(other *Value) error {
	if other == nil || !v.kind.Compatible(other.kind) {
		kind := "nil"
		if other != nil {
			kind = other.kind.String()
		}
		return errors.Wrapf(ErrWrongKind, "cannot assign %s to %s value", kind, v.kind)
	}
	if other.raw == nil {
		v.SetNull()
		return nil
	}
	switch v.kind.Family() {
	case FamilyNumber:
		return v.assignNumber(other)
	case FamilyTemporal:
		return v.assignTemporal(other.raw.(time.Time), other.kind.String())
	}
	v.set(other.Copy().raw)
	return nil
}

func (v *Value) set(raw any) {
	v.raw = raw
	v.modified = true
}

func (v *Value) assignNumber(src *Value) error {
	if err := v.expect(FamilyNumber, src.kind.String()); err != nil {
		return err
	}
	switch v.kind {
	case KindDecimal:
		v.set(v.roundDecimal(src.decimalPayload()))
	case KindDouble:
		v.set(src.floatPayload())
	case KindInteger:
		v.set(int32(src.truncated()))
	default:
		v.set(src.truncated())
	}
	return nil
}

func (v *Value) assignTemporal(t time.Time, as string) error {
	if err := v.expect(FamilyTemporal, as); err != nil {
		return err
	}
	switch v.kind {
	case KindDate:
		v.set(truncateDate(t))
	case KindTime:
		v.set(truncateTime(t))
	default:
		v.set(t)
	}
	return nil
}

func (v *Value) temporal(as string) (time.Time, error) {
	if err := v.expect(FamilyTemporal, as); err != nil {
		return time.Time{}, err
	}
	t, _ := v.raw.(time.Time)
	return t, nil
}

func (v *Value) truncated() int64 {
	if i, ok := v.integral(); ok {
		return i
	}
	switch p := v.raw.(type) {
	case decimal.Decimal:
		return p.IntPart()
	case float64:
		return int64(p)
	}
	return 0
}

func (v *Value) expect(family Family, as string) error {
	if v.kind.Family() != family {
		return errors.Wrapf(ErrWrongKind, "%s value accessed as %s", v.kind, as)
	}
	return nil
}
