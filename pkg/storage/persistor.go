package storage

import (
	"bytes"
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/recordkit/pkg/codec"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/recordset"
	"github.com/ssargent/recordkit/pkg/schema"
	"go.uber.org/multierr"
)

const idLength = 20

// Persistor stores the records of one view. Records live under
//
//	[r][view][0x00][order key][id] -> encoded record
//	[i][view][0x00][id]            -> record key
type Persistor struct {
	db      *DB
	view    *schema.View
	records []byte
	ids     []byte
}

var _ recordset.Persistor = (*Persistor)(nil)

func (p *Persistor) View() *schema.View {
	return p.view
}

// Insert stores r under a new id
func (p *Persistor) Insert(ctx context.Context, r *schema.Record) (ksuid.KSUID, error) {
	if err := ctx.Err(); err != nil {
		return ksuid.Nil, err
	}
	p.db.mutex.Lock()
	defer p.db.mutex.Unlock()

	id := ksuid.New()
	b := p.db.db.NewBatch()
	defer b.Close()
	if err := p.put(b, id, r); err != nil {
		return ksuid.Nil, err
	}
	if err := b.Commit(p.db.write); err != nil {
		return ksuid.Nil, errors.WithMessage(err, "commit insert")
	}
	return id, nil
}

// Update replaces the record stored under id
func (p *Persistor) Update(ctx context.Context, id ksuid.KSUID, r *schema.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.db.mutex.Lock()
	defer p.db.mutex.Unlock()

	old, err := p.recordKey(id)
	if err != nil {
		return err
	}
	b := p.db.db.NewIndexedBatch()
	defer b.Close()
	if err := b.Delete(old, nil); err != nil {
		return err
	}
	if err := p.put(b, id, r); err != nil {
		return err
	}
	return errors.WithMessage(b.Commit(p.db.write), "commit update")
}

// Delete removes the record stored under id
func (p *Persistor) Delete(ctx context.Context, id ksuid.KSUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.db.mutex.Lock()
	defer p.db.mutex.Unlock()

	key, err := p.recordKey(id)
	if err != nil {
		return err
	}
	b := p.db.db.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	if err := b.Delete(p.idKey(id), nil); err != nil {
		return err
	}
	return errors.WithMessage(b.Commit(p.db.write), "commit delete")
}

// Get returns the record stored under id
func (p *Persistor) Get(_ context.Context, id ksuid.KSUID) (*schema.Record, error) {
	key, err := p.recordKey(id)
	if err != nil {
		return nil, err
	}
	data, closer, err := p.db.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "id %s", id)
		}
		return nil, err
	}
	defer closer.Close()
	return p.db.codec.Decode(p.view.Fields, data)
}

// Count returns the number of records matching criteria. Without criteria
// only the id index is scanned.
func (p *Persistor) Count(ctx context.Context, criteria *query.Criteria) (int64, error) {
	if !criteria.IsEmpty() {
		it, err := p.Iterator(ctx, criteria, p.view.OrderBy)
		if err != nil {
			return 0, err
		}
		var n int64
		for it.Next() {
			n++
		}
		return n, multierr.Append(it.Err(), it.Close())
	}

	iter, err := p.db.db.NewIter(&pebble.IterOptions{LowerBound: p.ids, UpperBound: upperBound(p.ids)})
	if err != nil {
		return 0, err
	}
	var n int64
	for iter.First(); iter.Valid(); iter.Next() {
		n++
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, multierr.Append(err, iter.Close())
			}
		}
	}
	return n, multierr.Append(iter.Error(), iter.Close())
}

// Iterator returns the records matching criteria sorted by order. Under the
// view order it seeks to the key bound of the criteria when there is one;
// any other order is sorted in memory.
func (p *Persistor) Iterator(ctx context.Context, criteria *query.Criteria, order *schema.Order) (recordset.RecordIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if order == nil {
		order = p.view.OrderBy
	}

	start := p.records
	if b := criteria.Bound(); b != nil && b.Order.Equal(p.view.OrderBy) {
		key, err := codec.EncodeKey(b.Key)
		if err != nil {
			return nil, err
		}
		start = append(append([]byte{}, p.records...), key...)
	}
	iter, err := p.db.db.NewIter(&pebble.IterOptions{LowerBound: p.records, UpperBound: upperBound(p.records)})
	if err != nil {
		return nil, err
	}
	iter.SeekGE(start)

	it := recordset.Filter(&recordIterator{ctx: ctx, iter: iter, persistor: p, first: true}, criteria)
	if order.Equal(p.view.OrderBy) {
		return it, nil
	}
	records, err := recordset.Collect(it)
	if err != nil {
		return nil, err
	}
	if err := recordset.SortRecords(records, order); err != nil {
		return nil, err
	}
	return recordset.NewSliceIterator(records), nil
}

// put writes r and its id index entry to b; callers hold the write lock
func (p *Persistor) put(b *pebble.Batch, id ksuid.KSUID, r *schema.Record) error {
	rec, err := p.conform(r)
	if err != nil {
		return err
	}
	k, err := p.view.OrderBy.KeyFor(rec)
	if err != nil {
		return err
	}
	orderKey, err := codec.EncodeKey(k)
	if err != nil {
		return err
	}
	prefix := append(append([]byte{}, p.records...), orderKey...)
	dup, err := p.hasKey(b, prefix)
	if err != nil {
		return err
	}
	if dup {
		return errors.Wrapf(ErrDuplicateKey, "view %s", p.view.Name)
	}

	data, err := p.db.codec.Encode(rec)
	if err != nil {
		return err
	}
	key := append(prefix, id.Bytes()...)
	if err := b.Set(key, data, nil); err != nil {
		return err
	}
	return b.Set(p.idKey(id), key, nil)
}

// hasKey reports whether a record key [prefix][id] exists. An indexed batch
// is consulted so deletes staged in it are seen.
func (p *Persistor) hasKey(b *pebble.Batch, prefix []byte) (bool, error) {
	opts := &pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)}
	var (
		iter *pebble.Iterator
		err  error
	)
	if b.Indexed() {
		iter, err = b.NewIter(opts)
	} else {
		iter, err = p.db.db.NewIter(opts)
	}
	if err != nil {
		return false, err
	}
	found := false
	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Key()) == len(prefix)+idLength && bytes.HasPrefix(iter.Key(), prefix) {
			found = true
			break
		}
	}
	return found, multierr.Append(iter.Error(), iter.Close())
}

func (p *Persistor) recordKey(id ksuid.KSUID) ([]byte, error) {
	key, closer, err := p.db.db.Get(p.idKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "id %s", id)
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, key...), nil
}

func (p *Persistor) idKey(id ksuid.KSUID) []byte {
	return append(append([]byte{}, p.ids...), id.Bytes()...)
}

// conform copies r into a record of the view, matching fields by alias
func (p *Persistor) conform(r *schema.Record) (*schema.Record, error) {
	rec := p.view.NewRecord()
	for i, f := range r.Fields().Fields() {
		if err := rec.Set(f.Key(), r.ValueAt(i)); err != nil {
			return nil, err
		}
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// recordIterator decodes records from a pebble iterator positioned on the
// first candidate
type recordIterator struct {
	ctx       context.Context
	iter      *pebble.Iterator
	persistor *Persistor
	first     bool
	record    *schema.Record
	err       error
}

func (it *recordIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.first {
		it.first = false
	} else {
		it.iter.Next()
	}
	if !it.iter.Valid() {
		it.record = nil
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}
	it.record, it.err = it.persistor.db.codec.Decode(it.persistor.view.Fields, it.iter.Value())
	if it.err != nil {
		it.err = errors.WithMessagef(it.err, "decode record %x", it.iter.Key())
		return false
	}
	return true
}

func (it *recordIterator) Record() *schema.Record {
	return it.record
}

func (it *recordIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *recordIterator) Close() error {
	return it.iter.Close()
}
