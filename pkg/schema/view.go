package schema

import (
	"github.com/pkg/errors"
)

// Table is a named set of fields with an optional primary key
type Table struct {
	Name   string
	Fields *FieldList
}

// NewTable creates a table and records it as the parent of its fields
func NewTable(name string, fields *FieldList) *Table {
	for _, f := range fields.fields {
		if f.Parent == "" {
			f.Parent = name
		}
	}
	return &Table{Name: name, Fields: fields}
}

// View returns a view over all fields of the table. A nil order sorts by
// the primary key ascending.
func (t *Table) View(name string, order *Order) (*View, error) {
	return NewView(name, t.Fields, order)
}

// View is a named, ordered projection of records
type View struct {
	Name    string
	Fields  *FieldList
	OrderBy *Order
}

// NewView creates a view. Every order field must be part of fields. A nil
// order sorts by the primary key ascending, and a view without primary key
// or order is rejected since its records would have no stable position.
func NewView(name string, fields *FieldList, order *Order) (*View, error) {
	if order == nil || order.Len() == 0 {
		order = NewOrder()
		for _, f := range fields.PrimaryKey() {
			order.Add(f, true)
		}
	}
	if order.Len() == 0 {
		return nil, errors.Errorf("view %s: no order and no primary key", name)
	}
	for _, seg := range order.segments {
		if _, ok := fields.Lookup(seg.Field.Key()); !ok {
			return nil, errors.Wrapf(ErrFieldNotFound, "view %s: order field %q", name, seg.Field.Key())
		}
	}
	return &View{Name: name, Fields: fields, OrderBy: order}, nil
}

// NewRecord returns an empty record shaped by the view
func (v *View) NewRecord() *Record {
	return NewRecord(v.Fields)
}
