// Package memstore keeps the records of one view in an in-memory B+Tree
// ordered by the view order, optionally journaled to disk so the tree can
// be rebuilt on restart.
package memstore

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/recordkit/pkg/bptree"
	"github.com/ssargent/recordkit/pkg/codec"
	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/recordset"
	"github.com/ssargent/recordkit/pkg/schema"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a record repeats the view order key
	// of a stored record
	ErrDuplicateKey = errors.New("duplicate order key")
	ErrClosed       = errors.New("store is closed")
)

// Options configures a Store
type Options struct {
	TreeOrder int
	// JournalDir enables journaling to <JournalDir>/<view>.journal
	JournalDir    string
	FsyncInterval time.Duration
	Logger        *logger.Logger
}

type entry struct {
	id     ksuid.KSUID
	record *schema.Record
}

// Store holds the records of a view keyed by the encoded view order key
// followed by the record id, so a tree scan yields the view order.
type Store struct {
	view    *schema.View
	codec   *codec.RecordCodec
	tree    *bptree.BPlusTree[string, *entry]
	ids     map[ksuid.KSUID]string
	journal *Journal
	log     *logger.Logger
	mutex   sync.RWMutex
	closed  bool
}

var _ recordset.Persistor = (*Store)(nil)

// New creates a store for view, replaying its journal when one is
// configured
func New(view *schema.View, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger("memstore")
	}
	s := &Store{
		view:  view,
		codec: codec.NewRecordCodec(),
		tree:  bptree.NewBPlusTree[string, *entry](opts.TreeOrder),
		ids:   make(map[ksuid.KSUID]string),
		log:   opts.Logger,
	}
	if opts.JournalDir == "" {
		return s, nil
	}

	path := filepath.Join(opts.JournalDir, view.Name+".journal")
	result, err := ReplayJournal(path, s.apply)
	if err != nil {
		return nil, errors.WithMessagef(err, "replay journal of view %s", view.Name)
	}
	if result.BytesTruncated > 0 {
		s.log.Warn().Str("view", view.Name).Int64("bytes", result.BytesTruncated).Msg("truncated torn journal tail")
	}
	s.log.Info().Str("view", view.Name).Int64("entries", result.EntriesReplayed).Int("records", s.tree.Len()).Msg("journal replayed")

	s.journal, err = OpenJournal(JournalConfig{FilePath: path, FsyncInterval: opts.FsyncInterval})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) View() *schema.View {
	return s.view
}

// Insert stores a copy of r under a new id
func (s *Store) Insert(ctx context.Context, r *schema.Record) (ksuid.KSUID, error) {
	if err := ctx.Err(); err != nil {
		return ksuid.Nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ksuid.Nil, ErrClosed
	}
	id := ksuid.New()
	if err := s.put(id, r); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

// Update replaces the record stored under id
func (s *Store) Update(ctx context.Context, id ksuid.KSUID, r *schema.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}
	old, ok := s.ids[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	e, _ := s.tree.Search(old)
	s.tree.Delete(old)
	delete(s.ids, id)
	if err := s.put(id, r); err != nil {
		s.tree.Insert(old, e)
		s.ids[id] = old
		return err
	}
	return nil
}

// Delete removes the record stored under id
func (s *Store) Delete(ctx context.Context, id ksuid.KSUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}
	key, ok := s.ids[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if s.journal != nil {
		if _, err := s.journal.Append(OpDelete, id, nil); err != nil {
			return errors.WithMessage(err, "journal delete")
		}
	}
	s.tree.Delete(key)
	delete(s.ids, id)
	return nil
}

// Get returns a copy of the record stored under id
func (s *Store) Get(_ context.Context, id ksuid.KSUID) (*schema.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	key, ok := s.ids[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	e, ok := s.tree.Search(key)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return e.record.Copy(), nil
}

// Len returns the number of stored records
func (s *Store) Len() int {
	return s.tree.Len()
}

// Count returns the number of records matching criteria
func (s *Store) Count(ctx context.Context, criteria *query.Criteria) (int64, error) {
	if criteria.IsEmpty() {
		return int64(s.tree.Len()), nil
	}
	it, err := s.Iterator(ctx, criteria, s.view.OrderBy)
	if err != nil {
		return 0, err
	}
	var n int64
	for it.Next() {
		n++
	}
	if err := it.Err(); err != nil {
		_ = it.Close()
		return 0, err
	}
	return n, it.Close()
}

// Iterator returns the records matching criteria sorted by order. Under the
// view order records stream from the tree, starting at the key bound of the
// criteria when there is one. Any other order is sorted in memory.
func (s *Store) Iterator(ctx context.Context, criteria *query.Criteria, order *schema.Order) (recordset.RecordIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if order == nil {
		order = s.view.OrderBy
	}

	var from string
	if b := criteria.Bound(); b != nil && b.Order.Equal(s.view.OrderBy) {
		key, err := codec.EncodeKey(b.Key)
		if err != nil {
			return nil, err
		}
		from = string(key)
	}
	it := recordset.Filter(&treeIterator{ctx: ctx, tree: s.tree, from: from}, criteria)
	if order.Equal(s.view.OrderBy) {
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

// Close closes the journal. The records stay readable.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// put journals and indexes r under id; callers hold the write lock
func (s *Store) put(id ksuid.KSUID, r *schema.Record) error {
	rec, err := s.conform(r)
	if err != nil {
		return err
	}
	key, err := s.keyOf(rec)
	if err != nil {
		return err
	}
	if s.hasOrderKey(key) {
		return errors.Wrapf(ErrDuplicateKey, "view %s", s.view.Name)
	}
	if s.journal != nil {
		data, err := s.codec.Encode(rec)
		if err != nil {
			return err
		}
		if _, err := s.journal.Append(OpPut, id, data); err != nil {
			return errors.WithMessage(err, "journal put")
		}
	}
	s.index(id, key, rec)
	return nil
}

// apply replays one journal entry
func (s *Store) apply(e JournalEntry) error {
	switch e.Op {
	case OpPut:
		rec, err := s.codec.Decode(s.view.Fields, e.Payload)
		if err != nil {
			return err
		}
		key, err := s.keyOf(rec)
		if err != nil {
			return err
		}
		if old, ok := s.ids[e.ID]; ok {
			s.tree.Delete(old)
		}
		s.index(e.ID, key, rec)
	case OpDelete:
		if key, ok := s.ids[e.ID]; ok {
			s.tree.Delete(key)
			delete(s.ids, e.ID)
		}
	}
	return nil
}

func (s *Store) index(id ksuid.KSUID, orderKey []byte, rec *schema.Record) {
	key := string(append(orderKey, id.Bytes()...))
	s.tree.Insert(key, &entry{id: id, record: rec})
	s.ids[id] = key
}

// conform copies r into a record of the view, matching fields by alias
func (s *Store) conform(r *schema.Record) (*schema.Record, error) {
	rec := s.view.NewRecord()
	for i, f := range r.Fields().Fields() {
		if err := rec.Set(f.Key(), r.ValueAt(i).Copy()); err != nil {
			return nil, err
		}
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) keyOf(rec *schema.Record) ([]byte, error) {
	k, err := s.view.OrderBy.KeyFor(rec)
	if err != nil {
		return nil, err
	}
	return codec.EncodeKey(k)
}

func (s *Store) hasOrderKey(orderKey []byte) bool {
	found := false
	s.tree.Ascend(string(orderKey), func(key string, _ *entry) bool {
		found = len(key) == len(orderKey)+idLength && bytes.HasPrefix([]byte(key), orderKey)
		return false
	})
	return found
}
