package value

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	minInteger = decimal.NewFromInt(math.MinInt32)
	maxInteger = decimal.NewFromInt(math.MaxInt32)
	minLong    = decimal.NewFromInt(math.MinInt64)
	maxLong    = decimal.NewFromInt(math.MaxInt64)
)

var temporalLayouts = map[Kind][]string{
	KindDate:      {time.DateOnly, time.RFC3339Nano},
	KindTime:      {time.TimeOnly, "15:04", time.RFC3339Nano},
	KindTimestamp: {time.RFC3339Nano, time.DateTime, time.DateOnly},
}

// Parse reads a value of the given kind from its textual form.
// Bytes are read as hex, the same form String produces.
func Parse(kind Kind, text string) (*Value, error) {
	switch kind {
	case KindBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", kind)
		}
		return NewBoolean(b), nil
	case KindString:
		return NewString(text), nil
	case KindDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", kind)
		}
		return NewDecimal(d, UnsetScale), nil
	case KindDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", kind)
		}
		return NewDouble(f), nil
	case KindInteger:
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", kind)
		}
		return NewInteger(int32(i)), nil
	case KindLong:
		l, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", kind)
		}
		return NewLong(l), nil
	case KindDate, KindTime, KindTimestamp:
		t, err := parseTemporal(kind, strings.TrimSpace(text))
		if err != nil {
			return nil, err
		}
		v := Null(kind)
		if err := v.assignTemporal(t, kind.String()); err != nil {
			return nil, err
		}
		v.modified = false
		return v, nil
	case KindBytes:
		b, err := hex.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", kind)
		}
		return NewBytes(b), nil
	}
	return nil, errors.Wrapf(ErrWrongKind, "%s values have no textual form", kind)
}

func parseTemporal(kind Kind, text string) (time.Time, error) {
	var lastErr error
	for _, layout := range temporalLayouts[kind] {
		t, err := time.Parse(layout, text)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, errors.Wrapf(lastErr, "parse %s", kind)
}

// FromAny converts a decoded JSON value into a value of the given kind.
// Bytes are expected as base64 strings, the form MarshalJSON produces.
func FromAny(kind Kind, x any) (*Value, error) {
	switch p := x.(type) {
	case nil:
		if kind == KindDecimal {
			return NullDecimal(UnsetScale), nil
		}
		return Null(kind), nil
	case *Value:
		v := Null(kind)
		if err := v.Assign(p); err != nil {
			return nil, err
		}
		v.modified = false
		return v, nil
	case bool:
		if kind != KindBoolean {
			return nil, errors.Wrapf(ErrWrongKind, "boolean given for %s", kind)
		}
		return NewBoolean(p), nil
	case float64:
		if kind == KindDouble {
			return NewDouble(p), nil
		}
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, errors.Wrapf(ErrWrongKind, "%v given for %s", p, kind)
		}
		return fromNumber(kind, decimal.NewFromFloat(p), p)
	case int:
		return fromNumber(kind, decimal.NewFromInt(int64(p)), float64(p))
	case int64:
		return fromNumber(kind, decimal.NewFromInt(p), float64(p))
	case json.Number:
		d, err := decimal.NewFromString(p.String())
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", kind)
		}
		return fromNumber(kind, d, d.InexactFloat64())
	case string:
		if kind == KindBytes {
			b, err := base64.StdEncoding.DecodeString(p)
			if err != nil {
				return nil, errors.Wrapf(err, "parse %s", kind)
			}
			return NewBytes(b), nil
		}
		return Parse(kind, p)
	case []any:
		if kind != KindArray {
			return nil, errors.Wrapf(ErrWrongKind, "list given for %s", kind)
		}
		items := make([]*Value, len(p))
		for i, item := range p {
			elem, err := FromAny(inferKind(item), item)
			if err != nil {
				return nil, errors.WithMessagef(err, "array element %d", i)
			}
			items[i] = elem
		}
		return NewArray(items), nil
	}
	return nil, errors.Wrapf(ErrWrongKind, "unsupported %T given for %s", x, kind)
}

func fromNumber(kind Kind, d decimal.Decimal, f float64) (*Value, error) {
	switch kind {
	case KindDecimal:
		return NewDecimal(d, UnsetScale), nil
	case KindDouble:
		return NewDouble(f), nil
	case KindInteger:
		if !d.IsInteger() || d.LessThan(minInteger) || d.GreaterThan(maxInteger) {
			return nil, errors.Wrapf(ErrWrongKind, "%s is not a %s", d, kind)
		}
		return NewInteger(int32(d.IntPart())), nil
	case KindLong:
		if !d.IsInteger() || d.LessThan(minLong) || d.GreaterThan(maxLong) {
			return nil, errors.Wrapf(ErrWrongKind, "%s is not a %s", d, kind)
		}
		return NewLong(d.IntPart()), nil
	}
	return nil, errors.Wrapf(ErrWrongKind, "number given for %s", kind)
}

func inferKind(x any) Kind {
	switch x.(type) {
	case bool:
		return KindBoolean
	case float64, int, int64, json.Number:
		return KindDouble
	case []any:
		return KindArray
	}
	return KindString
}

// MarshalJSON encodes decimals and temporal values as strings and bytes as base64
func (v *Value) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return []byte("null"), nil
	}
	switch p := v.raw.(type) {
	case bool, float64, int32, int64, []byte, []*Value:
		return json.Marshal(p)
	}
	return json.Marshal(v.String())
}
