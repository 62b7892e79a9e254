package codec

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/value"
)

const (
	headerSize = 16
	entrySize  = 6

	flagNull = 1 << 0
)

var (
	// ErrCorrupt is returned when a checksum does not match the data
	ErrCorrupt = errors.New("corrupt record")
	// ErrSchemaMismatch is returned when data was encoded under another field list
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Header is the fixed prefix of an encoded record
type Header struct {
	CRC32      uint32 // CRC32 checksum for integrity
	FieldCount uint32 // Number of value entries
	Timestamp  uint64 // Unix timestamp in nanoseconds
}

// RecordCodec handles serialization and deserialization of records
type RecordCodec struct{}

// NewRecordCodec creates a new record codec instance
func NewRecordCodec() *RecordCodec {
	return &RecordCodec{}
}

// Encode serializes a record into the binary record format
func (c *RecordCodec) Encode(r *schema.Record) ([]byte, error) {
	n := r.Fields().Len()
	buf := make([]byte, headerSize, headerSize+n*(entrySize+8))
	binary.LittleEndian.PutUint32(buf[4:], uint32(n))
	binary.LittleEndian.PutUint64(buf[8:], uint64(time.Now().UnixNano()))

	var err error
	for i := 0; i < n; i++ {
		buf, err = appendValue(buf, r.ValueAt(i))
		if err != nil {
			return nil, errors.WithMessagef(err, "encode field %q", r.Fields().Field(i).Key())
		}
	}

	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))
	return buf, nil
}

// DecodeHeader reads and validates the header of an encoded record
func (c *RecordCodec) DecodeHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, errors.Wrapf(ErrCorrupt, "data too short for record header: %d bytes", len(data))
	}
	h := Header{
		CRC32:      binary.LittleEndian.Uint32(data[0:4]),
		FieldCount: binary.LittleEndian.Uint32(data[4:8]),
		Timestamp:  binary.LittleEndian.Uint64(data[8:16]),
	}
	if sum := crc32.ChecksumIEEE(data[4:]); sum != h.CRC32 {
		return Header{}, errors.Wrapf(ErrCorrupt, "CRC32 mismatch: %d != %d", h.CRC32, sum)
	}
	return h, nil
}

// Decode deserializes data into a record shaped by fields
func (c *RecordCodec) Decode(fields *schema.FieldList, data []byte) (*schema.Record, error) {
	h, err := c.DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if int(h.FieldCount) != fields.Len() {
		return nil, errors.Wrapf(ErrSchemaMismatch, "record has %d fields, schema %d", h.FieldCount, fields.Len())
	}

	r := schema.NewRecord(fields)
	rest := data[headerSize:]
	for i := 0; i < fields.Len(); i++ {
		f := fields.Field(i)
		var v *value.Value
		v, rest, err = readValue(rest)
		if err != nil {
			return nil, errors.WithMessagef(err, "decode field %q", f.Key())
		}
		if v.Kind() != f.Kind {
			return nil, errors.Wrapf(ErrSchemaMismatch, "field %q holds %s, data has %s", f.Key(), f.Kind, v.Kind())
		}
		slot := f.NewValue()
		if err := slot.Assign(v); err != nil {
			return nil, err
		}
		slot.SetModified(false)
		if err := r.Set(f.Key(), slot); err != nil {
			return nil, err
		}
	}
	if len(rest) != 0 {
		return nil, errors.Wrapf(ErrCorrupt, "%d trailing bytes", len(rest))
	}
	return r, nil
}

func appendValue(buf []byte, v *value.Value) ([]byte, error) {
	var entry [entrySize]byte
	entry[0] = byte(v.Kind())
	if v.IsNull() {
		entry[1] = flagNull
		return append(buf, entry[:]...), nil
	}
	payload, err := encodePayload(v)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(entry[2:], uint32(len(payload)))
	buf = append(buf, entry[:]...)
	return append(buf, payload...), nil
}

func encodePayload(v *value.Value) ([]byte, error) {
	switch v.Kind() {
	case value.KindBoolean:
		b, _ := v.AsBoolean()
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case value.KindString:
		s, _ := v.AsString()
		return []byte(s), nil
	case value.KindDecimal:
		d, _ := v.AsDecimal()
		return d.MarshalBinary()
	case value.KindDouble:
		f, _ := v.AsDouble()
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(f)), nil
	case value.KindInteger:
		i, _ := v.AsInteger()
		return binary.LittleEndian.AppendUint32(nil, uint32(i)), nil
	case value.KindLong:
		l, _ := v.AsLong()
		return binary.LittleEndian.AppendUint64(nil, uint64(l)), nil
	case value.KindDate, value.KindTime, value.KindTimestamp:
		t, _ := v.AsTimestamp()
		return t.MarshalBinary()
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b, nil
	case value.KindArray:
		items, _ := v.AsArray()
		buf := binary.LittleEndian.AppendUint32(nil, uint32(len(items)))
		var err error
		for i, item := range items {
			if item == nil {
				item = value.Null(value.KindString)
			}
			buf, err = appendValue(buf, item)
			if err != nil {
				return nil, errors.WithMessagef(err, "array element %d", i)
			}
		}
		return buf, nil
	}
	return nil, errors.Errorf("unknown kind %d", v.Kind())
}

func readValue(data []byte) (*value.Value, []byte, error) {
	if len(data) < entrySize {
		return nil, nil, errors.Wrap(ErrCorrupt, "truncated value entry")
	}
	kind := value.Kind(data[0])
	if data[1]&flagNull != 0 {
		return nullOf(kind), data[entrySize:], nil
	}
	n := binary.LittleEndian.Uint32(data[2:entrySize])
	if uint64(len(data)-entrySize) < uint64(n) {
		return nil, nil, errors.Wrapf(ErrCorrupt, "payload of %d bytes exceeds data", n)
	}
	payload := data[entrySize : entrySize+int(n)]
	v, err := decodePayload(kind, payload)
	if err != nil {
		return nil, nil, err
	}
	return v, data[entrySize+int(n):], nil
}

func nullOf(kind value.Kind) *value.Value {
	if kind == value.KindDecimal {
		return value.NullDecimal(value.UnsetScale)
	}
	return value.Null(kind)
}

func decodePayload(kind value.Kind, p []byte) (*value.Value, error) {
	fixed := func(n int) error {
		if len(p) != n {
			return errors.Wrapf(ErrCorrupt, "%s payload of %d bytes", kind, len(p))
		}
		return nil
	}

	switch kind {
	case value.KindBoolean:
		if err := fixed(1); err != nil {
			return nil, err
		}
		return value.NewBoolean(p[0] != 0), nil
	case value.KindString:
		return value.NewString(string(p)), nil
	case value.KindDecimal:
		var d decimal.Decimal
		if err := d.UnmarshalBinary(p); err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		return value.NewDecimal(d, value.UnsetScale), nil
	case value.KindDouble:
		if err := fixed(8); err != nil {
			return nil, err
		}
		return value.NewDouble(math.Float64frombits(binary.LittleEndian.Uint64(p))), nil
	case value.KindInteger:
		if err := fixed(4); err != nil {
			return nil, err
		}
		return value.NewInteger(int32(binary.LittleEndian.Uint32(p))), nil
	case value.KindLong:
		if err := fixed(8); err != nil {
			return nil, err
		}
		return value.NewLong(int64(binary.LittleEndian.Uint64(p))), nil
	case value.KindDate, value.KindTime, value.KindTimestamp:
		var t time.Time
		if err := t.UnmarshalBinary(p); err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		switch kind {
		case value.KindDate:
			return value.NewDate(t), nil
		case value.KindTime:
			return value.NewTime(t), nil
		}
		return value.NewTimestamp(t), nil
	case value.KindBytes:
		return value.NewBytes(append([]byte{}, p...)), nil
	case value.KindArray:
		if len(p) < 4 {
			return nil, errors.Wrap(ErrCorrupt, "truncated array")
		}
		n := binary.LittleEndian.Uint32(p)
		rest := p[4:]
		if uint64(n) > uint64(len(rest)/entrySize) {
			return nil, errors.Wrapf(ErrCorrupt, "array of %d elements exceeds data", n)
		}
		items := make([]*value.Value, n)
		for i := range items {
			var err error
			items[i], rest, err = readValue(rest)
			if err != nil {
				return nil, errors.WithMessagef(err, "array element %d", i)
			}
		}
		if len(rest) != 0 {
			return nil, errors.Wrap(ErrCorrupt, "trailing array bytes")
		}
		return value.NewArray(items), nil
	}
	return nil, errors.Wrapf(ErrCorrupt, "unknown kind %d", kind)
}
