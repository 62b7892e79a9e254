package schema

import (
	"github.com/pkg/errors"
)

// FieldList is an ordered set of fields addressed by alias.
// Each list owns its alias index; there is no shared registry.
type FieldList struct {
	fields []*Field
	index  map[string]int
}

// NewFieldList builds a list from fields, rejecting duplicate aliases
func NewFieldList(fields ...*Field) (*FieldList, error) {
	l := &FieldList{
		fields: make([]*Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := l.Add(f); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// MustFieldList is like NewFieldList but panics on duplicate aliases
func MustFieldList(fields ...*Field) *FieldList {
	l, err := NewFieldList(fields...)
	if err != nil {
		panic(err)
	}
	return l
}

// Add appends a field to the list
func (l *FieldList) Add(f *Field) error {
	if f == nil {
		return errors.New("nil field")
	}
	if _, exists := l.index[f.Key()]; exists {
		return errors.Wrapf(ErrDuplicateField, "%q", f.Key())
	}
	l.index[f.Key()] = len(l.fields)
	l.fields = append(l.fields, f)
	return nil
}

func (l *FieldList) Len() int {
	return len(l.fields)
}

func (l *FieldList) Field(i int) *Field {
	return l.fields[i]
}

// Fields returns the fields in declaration order
func (l *FieldList) Fields() []*Field {
	return append([]*Field{}, l.fields...)
}

// IndexOf returns the position of the field with the given alias, or -1
func (l *FieldList) IndexOf(alias string) int {
	if i, ok := l.index[alias]; ok {
		return i
	}
	return -1
}

// Lookup finds a field by alias
func (l *FieldList) Lookup(alias string) (*Field, bool) {
	i, ok := l.index[alias]
	if !ok {
		return nil, false
	}
	return l.fields[i], true
}

// PrimaryKey returns the primary key fields in declaration order
func (l *FieldList) PrimaryKey() []*Field {
	var pk []*Field
	for _, f := range l.fields {
		if f.PrimaryKey {
			pk = append(pk, f)
		}
	}
	return pk
}

// Aliases returns the field aliases in declaration order
func (l *FieldList) Aliases() []string {
	aliases := make([]string, len(l.fields))
	for i, f := range l.fields {
		aliases[i] = f.Key()
	}
	return aliases
}
