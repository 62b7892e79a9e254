package schema

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/value"
)

// OrderSegment binds a field to a sort direction
type OrderSegment struct {
	Field     *Field
	Ascending bool
}

// Order is a multi-field sort order over records
type Order struct {
	segments []OrderSegment
}

func NewOrder(segments ...OrderSegment) *Order {
	return &Order{segments: append([]OrderSegment{}, segments...)}
}

func Asc(f *Field) OrderSegment {
	return OrderSegment{Field: f, Ascending: true}
}

func Desc(f *Field) OrderSegment {
	return OrderSegment{Field: f, Ascending: false}
}

// Add appends a segment and returns the order for chaining
func (o *Order) Add(f *Field, ascending bool) *Order {
	o.segments = append(o.segments, OrderSegment{Field: f, Ascending: ascending})
	return o
}

func (o *Order) Len() int {
	return len(o.segments)
}

func (o *Order) Segment(i int) OrderSegment {
	return o.segments[i]
}

func (o *Order) Segments() []OrderSegment {
	return append([]OrderSegment{}, o.segments...)
}

// Compare orders two sort orders structurally, segment by segment, comparing
// field shapes and then directions
func (o *Order) Compare(other *Order) (int, error) {
	if other == nil || o.Len() != other.Len() {
		return 0, errors.Wrapf(ErrArityMismatch, "order of %d segments against %d", o.Len(), lenOf(other))
	}
	for i, seg := range o.segments {
		theirs := other.segments[i]
		c := seg.Field.compareShape(theirs.Field)
		if c == 0 && seg.Ascending != theirs.Ascending {
			c = 1
			if seg.Ascending {
				c = -1
			}
		}
		if c != 0 {
			if !seg.Ascending {
				c = -c
			}
			return c, nil
		}
	}
	return 0, nil
}

// Equal reports whether both orders sort by the same fields in the same directions
func (o *Order) Equal(other *Order) bool {
	c, err := o.Compare(other)
	return err == nil && c == 0
}

// KeyFor extracts the sort key of a record
func (o *Order) KeyFor(r *Record) (*OrderKey, error) {
	key := &OrderKey{segments: make([]KeySegment, 0, len(o.segments))}
	for _, seg := range o.segments {
		v, ok := r.Value(seg.Field.Key())
		if !ok {
			return nil, errors.Wrapf(ErrFieldNotFound, "order field %q", seg.Field.Key())
		}
		key.segments = append(key.segments, KeySegment{Value: v.Copy(), Ascending: seg.Ascending})
	}
	return key, nil
}

// CompareRecords orders two records under o
func (o *Order) CompareRecords(a, b *Record) (int, error) {
	for _, seg := range o.segments {
		av, ok := a.Value(seg.Field.Key())
		if !ok {
			return 0, errors.Wrapf(ErrFieldNotFound, "order field %q", seg.Field.Key())
		}
		bv, ok := b.Value(seg.Field.Key())
		if !ok {
			return 0, errors.Wrapf(ErrFieldNotFound, "order field %q", seg.Field.Key())
		}
		c, err := av.Compare(bv)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			if !seg.Ascending {
				c = -c
			}
			return c, nil
		}
	}
	return 0, nil
}

func (o *Order) String() string {
	parts := make([]string, len(o.segments))
	for i, seg := range o.segments {
		dir := "ASC"
		if !seg.Ascending {
			dir = "DESC"
		}
		parts[i] = seg.Field.Key() + " " + dir
	}
	return strings.Join(parts, ", ")
}

func lenOf(o *Order) int {
	if o == nil {
		return 0
	}
	return o.Len()
}

// KeySegment is one value of a sort key with its direction
type KeySegment struct {
	Value     *value.Value
	Ascending bool
}

// OrderKey is the sort relevant part of a record
type OrderKey struct {
	segments []KeySegment
}

func NewOrderKey(segments ...KeySegment) *OrderKey {
	return &OrderKey{segments: append([]KeySegment{}, segments...)}
}

// Add appends a segment and returns the key for chaining
func (k *OrderKey) Add(v *value.Value, ascending bool) *OrderKey {
	k.segments = append(k.segments, KeySegment{Value: v, Ascending: ascending})
	return k
}

func (k *OrderKey) Len() int {
	return len(k.segments)
}

func (k *OrderKey) Segment(i int) KeySegment {
	return k.segments[i]
}

// Compare orders keys lexicographically; descending segments flip the sign
// of their contribution
func (k *OrderKey) Compare(other *OrderKey) (int, error) {
	if other == nil || k.Len() != other.Len() {
		n := 0
		if other != nil {
			n = other.Len()
		}
		return 0, errors.Wrapf(ErrArityMismatch, "key of %d segments against %d", k.Len(), n)
	}
	for i, seg := range k.segments {
		c, err := seg.Value.Compare(other.segments[i].Value)
		if err != nil {
			return 0, errors.WithMessagef(err, "key segment %d", i)
		}
		if c != 0 {
			if !seg.Ascending {
				c = -c
			}
			return c, nil
		}
	}
	return 0, nil
}

func (k *OrderKey) String() string {
	parts := make([]string, len(k.segments))
	for i, seg := range k.segments {
		parts[i] = seg.Value.String()
		if !seg.Ascending {
			parts[i] += " DESC"
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
