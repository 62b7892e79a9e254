package codec

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/value"
)

// Segment tags. Null sorts before any value.
const (
	tagNull  byte = 0x00
	tagValue byte = 0x01

	// array elements are each preceded by tagElement and the array ends
	// with tagNull
	tagElement byte = 0x01

	// decimal signs
	decimalNegative byte = 0x00
	decimalZero     byte = 0x01
	decimalPositive byte = 0x02
)

// EncodeKey encodes key so that byte order equals key order. Descending
// segments are bit-inverted.
func EncodeKey(key *schema.OrderKey) ([]byte, error) {
	var buf []byte
	for i := 0; i < key.Len(); i++ {
		seg := key.Segment(i)
		start := len(buf)
		var err error
		buf, err = appendKeyValue(buf, seg.Value)
		if err != nil {
			return nil, errors.WithMessagef(err, "key segment %d", i)
		}
		if !seg.Ascending {
			invert(buf[start:])
		}
	}
	return buf, nil
}

func appendKeyValue(buf []byte, v *value.Value) ([]byte, error) {
	if v == nil || v.IsNull() {
		return append(buf, tagNull), nil
	}
	buf = append(buf, tagValue)

	switch v.Kind() {
	case value.KindBoolean:
		b, _ := v.AsBoolean()
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case value.KindString:
		s, _ := v.AsString()
		return appendEscaped(buf, []byte(s)), nil
	case value.KindBytes:
		b, _ := v.AsBytes()
		return appendEscaped(buf, b), nil
	case value.KindInteger, value.KindLong:
		l, _ := v.AsLong()
		return appendInt(buf, l), nil
	case value.KindDouble:
		f, _ := v.AsDouble()
		if math.IsNaN(f) {
			// NaN sorts before -Inf, as in Value.Compare
			return binary.BigEndian.AppendUint64(buf, 0), nil
		}
		if f == 0 {
			f = 0 // -0 equals 0
		}
		bits := math.Float64bits(f)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		return binary.BigEndian.AppendUint64(buf, bits), nil
	case value.KindDecimal:
		return appendDecimal(buf, v)
	case value.KindDate, value.KindTime, value.KindTimestamp:
		t, _ := v.AsTimestamp()
		buf = appendInt(buf, t.Unix())
		return binary.BigEndian.AppendUint32(buf, uint32(t.Nanosecond())), nil
	case value.KindArray:
		items, _ := v.AsArray()
		var err error
		for _, item := range items {
			buf = append(buf, tagElement)
			if buf, err = appendKeyValue(buf, item); err != nil {
				return nil, err
			}
		}
		return append(buf, tagNull), nil
	}
	return nil, errors.Errorf("unknown kind %d", v.Kind())
}

// appendInt writes l big-endian with the sign bit flipped
func appendInt(buf []byte, l int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(l)^(1<<63))
}

// appendEscaped writes b with 0x00 escaped as 0x00 0xFF and terminated by
// 0x00 0x01
func appendEscaped(buf, b []byte) []byte {
	for _, c := range b {
		buf = append(buf, c)
		if c == 0x00 {
			buf = append(buf, 0xFF)
		}
	}
	return append(buf, 0x00, 0x01)
}

// appendDecimal writes a sign byte and, for non-zero values, the magnitude
// as 0.d1d2..dn x 10^e: the exponent, then the digits without trailing zeros
// and a 0x00 terminator. Negative magnitudes are inverted.
func appendDecimal(buf []byte, v *value.Value) ([]byte, error) {
	d, err := v.AsDecimal()
	if err != nil {
		return nil, err
	}
	if d.IsZero() {
		return append(buf, decimalZero), nil
	}

	digits := d.Coefficient()
	digits.Abs(digits)
	s := digits.String()
	trimmed := strings.TrimRight(s, "0")
	exp := int64(d.Exponent()) + int64(len(s))

	sign := decimalPositive
	if d.Sign() < 0 {
		sign = decimalNegative
	}
	buf = append(buf, sign)
	start := len(buf)
	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(exp))^(1<<31))
	buf = append(buf, trimmed...)
	buf = append(buf, 0x00)
	if sign == decimalNegative {
		invert(buf[start:])
	}
	return buf, nil
}

func invert(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}
