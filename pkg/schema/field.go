// Package schema describes the shape of records: fields, field lists,
// tables and views, together with the records themselves and the sort
// orders and keys defined over them.
package schema

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/ssargent/recordkit/pkg/value"
)

// Field describes one named, typed data slot
type Field struct {
	Name       string
	Alias      string
	Kind       value.Kind
	Length     int
	Scale      int32 // decimal scale, value.UnsetScale when not fixed
	Nullable   bool
	Required   bool
	PrimaryKey bool
	Parent     string // name of the owning table or view, lookup only
}

// NewField creates a nullable field whose alias is its name
func NewField(name string, kind value.Kind) *Field {
	return &Field{
		Name:     name,
		Alias:    name,
		Kind:     kind,
		Scale:    value.UnsetScale,
		Nullable: true,
	}
}

// Key returns the alias the field is addressed by
func (f *Field) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Equal reports whether both fields have the same alias and name
func (f *Field) Equal(other *Field) bool {
	if other == nil {
		return false
	}
	return f.Key() == other.Key() && f.Name == other.Name
}

// compareShape orders fields by alias, kind, length and scale
func (f *Field) compareShape(other *Field) int {
	if c := strings.Compare(f.Key(), other.Key()); c != 0 {
		return c
	}
	if c := cmp.Compare(f.Kind, other.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(f.Length, other.Length); c != 0 {
		return c
	}
	return cmp.Compare(f.Scale, other.Scale)
}

// SameShape reports whether both fields agree on alias, kind, length and scale
func (f *Field) SameShape(other *Field) bool {
	return other != nil && f.compareShape(other) == 0
}

// NewValue returns a null value able to hold data of this field
func (f *Field) NewValue() *value.Value {
	if f.Kind == value.KindDecimal {
		return value.NullDecimal(f.Scale)
	}
	return value.Null(f.Kind)
}

func (f *Field) String() string {
	if f.Alias != "" && f.Alias != f.Name {
		return fmt.Sprintf("%s AS %s (%s)", f.Name, f.Alias, f.Kind)
	}
	return fmt.Sprintf("%s (%s)", f.Name, f.Kind)
}
