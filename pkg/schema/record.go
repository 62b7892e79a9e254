package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/value"
)

// Record is an ordered set of values paired with the field list describing them
type Record struct {
	fields *FieldList
	values []*value.Value
}

// NewRecord creates a record with a null value for every field
func NewRecord(fields *FieldList) *Record {
	r := &Record{
		fields: fields,
		values: make([]*value.Value, fields.Len()),
	}
	for i, f := range fields.fields {
		r.values[i] = f.NewValue()
	}
	return r
}

func (r *Record) Fields() *FieldList {
	return r.fields
}

// Value returns the value stored for the field alias
func (r *Record) Value(alias string) (*value.Value, bool) {
	i := r.fields.IndexOf(alias)
	if i < 0 {
		return nil, false
	}
	return r.values[i], true
}

func (r *Record) ValueAt(i int) *value.Value {
	return r.values[i]
}

// Set replaces the value of a field. The value kind must equal the field kind.
func (r *Record) Set(alias string, v *value.Value) error {
	i := r.fields.IndexOf(alias)
	if i < 0 {
		return errors.Wrapf(ErrFieldNotFound, "%q", alias)
	}
	f := r.fields.fields[i]
	if v == nil {
		r.values[i] = f.NewValue()
		return nil
	}
	if v.Kind() != f.Kind {
		return errors.Wrapf(value.ErrWrongKind, "field %q holds %s, got %s", alias, f.Kind, v.Kind())
	}
	if f.Kind == value.KindDecimal && f.Scale != value.UnsetScale {
		// rounded to the field scale, as DecodeRecord does
		slot := f.NewValue()
		if err := slot.Assign(v); err != nil {
			return errors.WithMessagef(err, "field %q", alias)
		}
		slot.SetModified(v.Modified())
		v = slot
	}
	r.values[i] = v
	return nil
}

// MustSet is like Set but panics on error
func (r *Record) MustSet(alias string, v *value.Value) *Record {
	if err := r.Set(alias, v); err != nil {
		panic(err)
	}
	return r
}

// Copy returns a deep copy of the record sharing the field list
func (r *Record) Copy() *Record {
	c := &Record{fields: r.fields, values: make([]*value.Value, len(r.values))}
	for i, v := range r.values {
		c.values[i] = v.Copy()
	}
	return c
}

// OrderKey extracts the sort key of the record under order
func (r *Record) OrderKey(order *Order) (*OrderKey, error) {
	return order.KeyFor(r)
}

// Validate checks that required and non-nullable fields carry a value
func (r *Record) Validate() error {
	for i, f := range r.fields.fields {
		if (f.Required || !f.Nullable || f.PrimaryKey) && r.values[i].IsNull() {
			return errors.Wrapf(ErrMissingValue, "field %q", f.Key())
		}
	}
	return nil
}

func (r *Record) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		parts[i] = r.fields.fields[i].Key() + "=" + v.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the record as an object in field order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r.values {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.fields.fields[i].Key())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		data, err := v.MarshalJSON()
		if err != nil {
			return nil, errors.WithMessagef(err, "field %q", r.fields.fields[i].Key())
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeRecord builds a record from a decoded JSON object. Fields absent
// from data stay null; keys unknown to fields are rejected.
func DecodeRecord(fields *FieldList, data map[string]any) (*Record, error) {
	r := NewRecord(fields)
	for key, raw := range data {
		i := fields.IndexOf(key)
		if i < 0 {
			return nil, errors.Wrapf(ErrFieldNotFound, "%q", key)
		}
		f := fields.fields[i]
		v, err := value.FromAny(f.Kind, raw)
		if err != nil {
			return nil, errors.WithMessagef(err, "field %q", key)
		}
		slot := f.NewValue()
		if err := slot.Assign(v); err != nil {
			return nil, errors.WithMessagef(err, "field %q", key)
		}
		slot.SetModified(false)
		r.values[i] = slot
	}
	return r, nil
}
