package memstore

import (
	"context"

	"github.com/ssargent/recordkit/pkg/bptree"
	"github.com/ssargent/recordkit/pkg/schema"
)

const batchSize = 64

// treeIterator walks the tree in key order a batch at a time, so no tree
// lock is held between calls. Writes between batches are seen by later
// batches.
type treeIterator struct {
	ctx  context.Context
	tree *bptree.BPlusTree[string, *entry]
	from string // next batch starts here
	skip bool   // exclude from itself, it was the last key read

	batch  []*schema.Record
	record *schema.Record
	done   bool
	err    error
}

func (it *treeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if len(it.batch) == 0 && !it.done {
		it.fill()
	}
	if len(it.batch) == 0 {
		it.record = nil
		return false
	}
	it.record, it.batch = it.batch[0], it.batch[1:]
	return true
}

func (it *treeIterator) fill() {
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return
	}
	var last string
	n := 0
	it.tree.Ascend(it.from, func(key string, e *entry) bool {
		if it.skip && key == it.from {
			return true
		}
		it.batch = append(it.batch, e.record.Copy())
		last = key
		n++
		return n < batchSize
	})
	if n < batchSize {
		it.done = true
		return
	}
	it.from, it.skip = last, true
}

func (it *treeIterator) Record() *schema.Record {
	return it.record
}

func (it *treeIterator) Err() error {
	return it.err
}

func (it *treeIterator) Close() error {
	it.batch, it.done = nil, true
	return nil
}
