package recordset

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/schema"
	"go.uber.org/multierr"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 64
)

// Options configures a PageRecordSet
type Options struct {
	PageSize int
	// MaxPages caps the retained page boundaries, the first page included
	MaxPages int
	Logger   *logger.Logger
	Metrics  *Metrics
}

// page is the boundary of a run of consecutive records. Contents are not
// kept; revisiting a page reloads it from its first key.
type page struct {
	firstIndex int64
	lastIndex  int64
	firstKey   *schema.OrderKey
	lastKey    *schema.OrderKey
}

func (p *page) covers(index int64) bool {
	return p != nil && index >= p.firstIndex && index <= p.lastIndex
}

func (p *page) len() int64 {
	return p.lastIndex - p.firstIndex + 1
}

// Stats describes the state of a PageRecordSet
type Stats struct {
	Size           int64 `json:"size"` // -1 until counted
	PageSize       int   `json:"page_size"`
	RetainedPages  int   `json:"retained_pages"`
	CurrentPage    int64 `json:"current_page"` // first index of the current page, -1 when none
	PageLoads      int   `json:"page_loads"`
	RecordsFetched int   `json:"records_fetched"`
}

// PageRecordSet gives random access to the records of a persistor matching
// criteria, in the view order, holding one page of records at a time.
// Pages are located by order key, never by offset, so the persistor only
// needs to answer "records after key" queries.
//
// A PageRecordSet is not safe for concurrent use.
type PageRecordSet struct {
	persistor Persistor
	criteria  *query.Criteria
	order     *schema.Order
	pageSize  int
	log       *logger.Logger
	metrics   *Metrics

	size    int64
	sized   bool
	first   *page // pinned
	pages   *lru.Cache[int64, *page]
	current *page
	records []*schema.Record

	loads   int
	fetched int
}

// NewPageRecordSet creates a record set over persistor. Nothing is loaded
// until Size or Get is called.
func NewPageRecordSet(persistor Persistor, criteria *query.Criteria, opts Options) (*PageRecordSet, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.MaxPages < 2 {
		opts.MaxPages = 2
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger("recordset")
	}
	if criteria == nil {
		criteria = query.NewCriteria()
	}

	s := &PageRecordSet{
		persistor: persistor,
		criteria:  criteria,
		order:     persistor.View().OrderBy,
		pageSize:  opts.PageSize,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		size:      -1,
	}
	pages, err := lru.NewWithEvict[int64, *page](opts.MaxPages-1, func(_ int64, _ *page) {
		s.metrics.recordEviction()
	})
	if err != nil {
		return nil, errors.WithMessage(err, "page cache")
	}
	s.pages = pages
	return s, nil
}

// Order returns the order of the records, the view order of the persistor
func (s *PageRecordSet) Order() *schema.Order {
	return s.order
}

func (s *PageRecordSet) Criteria() *query.Criteria {
	return s.criteria
}

// Size counts the matching records and loads the first page. The count is
// taken once and kept until Refresh.
func (s *PageRecordSet) Size(ctx context.Context) (int64, error) {
	if !s.sized {
		start := time.Now()
		n, err := s.persistor.Count(ctx, s.criteria)
		s.metrics.RecordLoad(LoadCount, start, 0, err)
		if err != nil {
			s.log.Error().Err(err).Str("view", s.persistor.View().Name).Msg("count failed")
			return 0, persistenceError(LoadCount, err)
		}
		s.size, s.sized = n, true
	}
	if s.first == nil {
		if err := s.loadFirstPage(ctx); err != nil {
			return 0, err
		}
	}
	return s.size, nil
}

// Get returns the record at index
func (s *PageRecordSet) Get(ctx context.Context, index int64) (*schema.Record, error) {
	if index < 0 || (s.sized && index >= s.size) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d", index)
	}
	if s.current.covers(index) {
		return s.records[index-s.current.firstIndex], nil
	}
	if s.first == nil {
		if err := s.loadFirstPage(ctx); err != nil {
			return nil, err
		}
		if s.current.covers(index) {
			return s.records[index], nil
		}
	}

	p := s.nearest(index)
	if p.covers(index) {
		if err := s.reload(ctx, p); err != nil {
			return nil, err
		}
	} else if err := s.walk(ctx, p, index); err != nil {
		return nil, err
	}
	if !s.current.covers(index) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d", index)
	}
	return s.records[index-s.current.firstIndex], nil
}

// Page returns up to limit records starting at offset
func (s *PageRecordSet) Page(ctx context.Context, offset, limit int64) ([]*schema.Record, error) {
	if limit <= 0 {
		return []*schema.Record{}, nil
	}
	records := make([]*schema.Record, 0, min(limit, int64(s.pageSize)))
	for i := offset; i < offset+limit; i++ {
		r, err := s.Get(ctx, i)
		if errors.Is(err, ErrIndexOutOfRange) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Sort is not supported; the order is fixed by the persistor
func (s *PageRecordSet) Sort() error {
	return errors.Wrap(ErrUnsupportedOperation, "page record sets keep the view order")
}

// SortBy is not supported; the order is fixed by the persistor
func (s *PageRecordSet) SortBy(*schema.Order) error {
	return errors.Wrap(ErrUnsupportedOperation, "page record sets keep the view order")
}

// Refresh forgets the count and every page
func (s *PageRecordSet) Refresh() {
	s.size, s.sized = -1, false
	s.first, s.current, s.records = nil, nil, nil
	s.pages.Purge()
}

func (s *PageRecordSet) Stats() Stats {
	st := Stats{
		Size:           s.size,
		PageSize:       s.pageSize,
		RetainedPages:  s.pages.Len(),
		CurrentPage:    -1,
		PageLoads:      s.loads,
		RecordsFetched: s.fetched,
	}
	if s.first != nil {
		st.RetainedPages++
	}
	if s.current != nil {
		st.CurrentPage = s.current.firstIndex
	}
	return st
}

// nearest returns the retained page with the greatest first index not
// after index. The first page always qualifies.
func (s *PageRecordSet) nearest(index int64) *page {
	best := s.first
	for _, first := range s.pages.Keys() {
		if first <= index && first > best.firstIndex {
			if p, ok := s.pages.Peek(first); ok {
				best = p
			}
		}
	}
	return best
}

func (s *PageRecordSet) loadFirstPage(ctx context.Context) error {
	p, records, err := s.load(ctx, LoadFirst, 0, nil, false)
	if err != nil {
		return err
	}
	if p == nil {
		// nothing matches; keep an empty first page so Size does not reload
		p = &page{firstIndex: 0, lastIndex: -1}
	}
	s.first = p
	s.setCurrent(p, records)
	return nil
}

// reload fetches the records of a known page again starting at its first key
func (s *PageRecordSet) reload(ctx context.Context, old *page) error {
	p, records, err := s.load(ctx, LoadReload, old.firstIndex, old.firstKey, true)
	if err != nil {
		return err
	}
	if p == nil {
		p = &page{firstIndex: old.firstIndex, lastIndex: old.firstIndex - 1}
	}
	if p.lastIndex != old.lastIndex || !sameKey(p.lastKey, old.lastKey) {
		s.log.Debug().Int64("first_index", old.firstIndex).Msg("page boundaries moved, dropping later pages")
		s.dropAfter(old.firstIndex)
	}
	s.retain(p)
	s.setCurrent(p, records)
	return nil
}

// walk loads pages forward from p until one covers index or the records run
// out
func (s *PageRecordSet) walk(ctx context.Context, p *page, index int64) error {
	for !p.covers(index) {
		if p.len() < int64(s.pageSize) {
			// p is the last page
			return errors.Wrapf(ErrIndexOutOfRange, "index %d", index)
		}
		next, records, err := s.load(ctx, LoadNext, p.lastIndex+1, p.lastKey, false)
		if err != nil {
			return err
		}
		if next == nil {
			return errors.Wrapf(ErrIndexOutOfRange, "index %d", index)
		}
		s.retain(next)
		s.setCurrent(next, records)
		p = next
	}
	return nil
}

// load runs one bounded query. A nil page means no record matched.
func (s *PageRecordSet) load(ctx context.Context, kind string, firstIndex int64, bound *schema.OrderKey, inclusive bool) (p *page, records []*schema.Record, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordLoad(kind, start, len(records), err)
		if err != nil {
			s.log.Error().Err(err).Str("view", s.persistor.View().Name).Str("kind", kind).
				Int64("first_index", firstIndex).Msg("page load failed")
			return
		}
		s.loads++
		s.fetched += len(records)
		s.log.Debug().Str("view", s.persistor.View().Name).Str("kind", kind).
			Int64("first_index", firstIndex).Int("records", len(records)).
			Dur("took", time.Since(start)).Msg("page loaded")
	}()

	criteria := s.criteria
	if bound != nil {
		after, err := query.AfterKey(s.order, bound, inclusive)
		if err != nil {
			return nil, nil, err
		}
		criteria = query.And(s.criteria, after)
	}

	records, err = s.fetch(ctx, criteria)
	if err != nil {
		return nil, nil, persistenceError(kind, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	p = &page{firstIndex: firstIndex, lastIndex: firstIndex + int64(len(records)) - 1}
	if p.firstKey, err = s.order.KeyFor(records[0]); err != nil {
		return nil, nil, err
	}
	if p.lastKey, err = s.order.KeyFor(records[len(records)-1]); err != nil {
		return nil, nil, err
	}
	return p, records, nil
}

// fetch reads at most one page of records and always closes the iterator
func (s *PageRecordSet) fetch(ctx context.Context, criteria *query.Criteria) (records []*schema.Record, err error) {
	it, err := s.persistor.Iterator(ctx, criteria, s.order)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, it.Close())
	}()

	records = make([]*schema.Record, 0, s.pageSize)
	for len(records) < s.pageSize && it.Next() {
		records = append(records, it.Record())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return records, ctx.Err()
}

func (s *PageRecordSet) setCurrent(p *page, records []*schema.Record) {
	s.current = p
	s.records = records
}

func (s *PageRecordSet) retain(p *page) {
	if p.firstIndex == 0 {
		s.first = p
		return
	}
	s.pages.Add(p.firstIndex, p)
}

func (s *PageRecordSet) dropAfter(firstIndex int64) {
	for _, k := range s.pages.Keys() {
		if k > firstIndex {
			s.pages.Remove(k)
		}
	}
}

func sameKey(a, b *schema.OrderKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	c, err := a.Compare(b)
	return err == nil && c == 0
}
