package value

import (
	"bytes"
	"cmp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Compare orders v against other. Null sorts before any non-null value of
// the same family.
func (v *Value) Compare(other *Value) (int, error) {
	if other == nil {
		return 0, errors.Wrapf(ErrNotComparable, "%s value against nil", v.kind)
	}
	if !v.kind.Compatible(other.kind) {
		return 0, errors.Wrapf(ErrNotComparable, "%s value against %s value", v.kind, other.kind)
	}
	switch {
	case v.raw == nil && other.raw == nil:
		return 0, nil
	case v.raw == nil:
		return -1, nil
	case other.raw == nil:
		return 1, nil
	}

	switch v.kind.Family() {
	case FamilyBoolean:
		a, b := v.raw.(bool), other.raw.(bool)
		switch {
		case a == b:
			return 0, nil
		case !a:
			return -1, nil
		}
		return 1, nil
	case FamilyString:
		return strings.Compare(v.raw.(string), other.raw.(string)), nil
	case FamilyNumber:
		return compareNumbers(v, other), nil
	case FamilyTemporal:
		return v.raw.(time.Time).Compare(other.raw.(time.Time)), nil
	case FamilyBytes:
		return bytes.Compare(v.raw.([]byte), other.raw.([]byte)), nil
	default:
		return compareArrays(v.raw.([]*Value), other.raw.([]*Value))
	}
}

// Equal reports whether both values belong to the same family and carry
// equal payloads
func (v *Value) Equal(other *Value) bool {
	if other == nil || !v.kind.Compatible(other.kind) {
		return false
	}
	c, err := v.Compare(other)
	return err == nil && c == 0
}

func compareNumbers(a, b *Value) int {
	ai, aok := a.integral()
	bi, bok := b.integral()
	if aok && bok {
		return cmp.Compare(ai, bi)
	}
	if a.kind != KindDouble && b.kind != KindDouble {
		return a.decimalPayload().Cmp(b.decimalPayload())
	}
	return cmp.Compare(a.floatPayload(), b.floatPayload())
}

func compareArrays(a, b []*Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] == nil && b[i] == nil:
			continue
		case a[i] == nil:
			return -1, nil
		case b[i] == nil:
			return 1, nil
		}
		c, err := a[i].Compare(b[i])
		if err != nil {
			return 0, errors.WithMessagef(err, "array element %d", i)
		}
		if c != 0 {
			return c, nil
		}
	}
	return cmp.Compare(len(a), len(b)), nil
}

// integral returns the payload of integer kinds
func (v *Value) integral() (int64, bool) {
	switch p := v.raw.(type) {
	case int32:
		return int64(p), true
	case int64:
		return p, true
	}
	return 0, false
}

func (v *Value) decimalPayload() decimal.Decimal {
	switch p := v.raw.(type) {
	case decimal.Decimal:
		return p
	case float64:
		return decimal.NewFromFloat(p)
	case int32:
		return decimal.NewFromInt32(p)
	case int64:
		return decimal.NewFromInt(p)
	}
	return decimal.Zero
}

func (v *Value) floatPayload() float64 {
	switch p := v.raw.(type) {
	case decimal.Decimal:
		return p.InexactFloat64()
	case float64:
		return p
	case int32:
		return float64(p)
	case int64:
		return float64(p)
	}
	return 0
}
