// Package recordset presents list-like access over records held by a
// Persistor: PageRecordSet pages through arbitrarily large results by order
// key boundaries, CachedRecordSet walks a single cursor behind a record
// cache.
package recordset

import (
	"context"
	"slices"

	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/schema"
	"go.uber.org/multierr"
)

// RecordIterator streams records. Callers must Close it on every path.
type RecordIterator interface {
	Next() bool
	Record() *schema.Record
	Err() error
	Close() error
}

// Persistor is an ordered source of the records of one view
type Persistor interface {
	View() *schema.View
	// Count returns the number of records matching criteria
	Count(ctx context.Context, criteria *query.Criteria) (int64, error)
	// Iterator returns the records matching criteria sorted by order
	Iterator(ctx context.Context, criteria *query.Criteria, order *schema.Order) (RecordIterator, error)
}

// sliceIterator implements RecordIterator over loaded records
type sliceIterator struct {
	records []*schema.Record
	index   int
}

// NewSliceIterator iterates over records in slice order
func NewSliceIterator(records []*schema.Record) RecordIterator {
	return &sliceIterator{records: records}
}

func (it *sliceIterator) Next() bool {
	if it.index < len(it.records) {
		it.index++
		return true
	}
	return false
}

func (it *sliceIterator) Record() *schema.Record {
	if it.index > 0 && it.index <= len(it.records) {
		return it.records[it.index-1]
	}
	return nil
}

func (it *sliceIterator) Err() error {
	return nil
}

func (it *sliceIterator) Close() error {
	it.records = nil
	return nil
}

// filterIterator skips records failing criteria
type filterIterator struct {
	RecordIterator
	criteria *query.Criteria
	err      error
}

// Filter wraps it so that only records matching criteria are returned
func Filter(it RecordIterator, criteria *query.Criteria) RecordIterator {
	if criteria.IsEmpty() {
		return it
	}
	return &filterIterator{RecordIterator: it, criteria: criteria}
}

func (it *filterIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.RecordIterator.Next() {
		ok, err := it.criteria.Check(it.RecordIterator.Record())
		if err != nil {
			it.err = err
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

func (it *filterIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.RecordIterator.Err()
}

// Collect drains and closes it
func Collect(it RecordIterator) (records []*schema.Record, err error) {
	defer func() {
		err = multierr.Append(err, it.Close())
	}()
	for it.Next() {
		records = append(records, it.Record())
	}
	return records, it.Err()
}

// SortRecords sorts records in place by order, keeping the relative order
// of equal records
func SortRecords(records []*schema.Record, order *schema.Order) error {
	var sortErr error
	slices.SortStableFunc(records, func(a, b *schema.Record) int {
		c, err := order.CompareRecords(a, b)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	return sortErr
}
