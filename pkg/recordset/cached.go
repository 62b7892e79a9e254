package recordset

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/schema"
)

const DefaultCacheSize = 1024

// CachedRecordSet reports the size of a result through Count and reads
// records through one forward cursor, keeping the most recently read ones.
// Reading behind the cursor outside the cache restarts it.
//
// A CachedRecordSet is not safe for concurrent use.
type CachedRecordSet struct {
	persistor Persistor
	criteria  *query.Criteria
	log       *logger.Logger
	metrics   *Metrics

	size  int64
	sized bool
	cache *lru.Cache[int64, *schema.Record]

	cursor RecordIterator
	pos    int64 // index of the record the next cursor step yields
}

// NewCachedRecordSet creates a record set keeping up to cacheSize records
func NewCachedRecordSet(persistor Persistor, criteria *query.Criteria, cacheSize int, opts Options) (*CachedRecordSet, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger("recordset")
	}
	if criteria == nil {
		criteria = query.NewCriteria()
	}
	cache, err := lru.New[int64, *schema.Record](cacheSize)
	if err != nil {
		return nil, errors.WithMessage(err, "record cache")
	}
	return &CachedRecordSet{
		persistor: persistor,
		criteria:  criteria,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		size:      -1,
		cache:     cache,
	}, nil
}

// Size returns the number of matching records, counted once until Refresh
func (s *CachedRecordSet) Size(ctx context.Context) (int64, error) {
	if s.sized {
		return s.size, nil
	}
	start := time.Now()
	n, err := s.persistor.Count(ctx, s.criteria)
	s.metrics.RecordLoad(LoadCount, start, 0, err)
	if err != nil {
		s.log.Error().Err(err).Str("view", s.persistor.View().Name).Msg("count failed")
		return 0, persistenceError(LoadCount, err)
	}
	s.size, s.sized = n, true
	return n, nil
}

// Get returns the record at index
func (s *CachedRecordSet) Get(ctx context.Context, index int64) (*schema.Record, error) {
	if index < 0 || (s.sized && index >= s.size) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d", index)
	}
	if r, ok := s.cache.Get(index); ok {
		return r, nil
	}

	if s.cursor == nil || index < s.pos {
		if err := s.restart(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	read := 0
	for s.pos <= index {
		if !s.cursor.Next() {
			err := s.cursor.Err()
			s.metrics.RecordLoad(LoadCursor, start, read, err)
			if err != nil {
				s.log.Error().Err(err).Str("view", s.persistor.View().Name).Msg("cursor failed")
				s.closeCursor()
				return nil, persistenceError(LoadCursor, err)
			}
			return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d", index)
		}
		s.cache.Add(s.pos, s.cursor.Record())
		s.pos++
		read++
	}
	s.metrics.RecordLoad(LoadCursor, start, read, nil)
	r, _ := s.cache.Peek(index)
	return r, nil
}

// Sort is not supported; the order is fixed by the persistor
func (s *CachedRecordSet) Sort() error {
	return errors.Wrap(ErrUnsupportedOperation, "cached record sets keep the view order")
}

// SortBy is not supported; the order is fixed by the persistor
func (s *CachedRecordSet) SortBy(*schema.Order) error {
	return errors.Wrap(ErrUnsupportedOperation, "cached record sets keep the view order")
}

// Refresh forgets the count, the cached records and the cursor
func (s *CachedRecordSet) Refresh() error {
	s.size, s.sized = -1, false
	s.cache.Purge()
	return s.closeCursor()
}

// Close releases the cursor
func (s *CachedRecordSet) Close() error {
	return s.closeCursor()
}

func (s *CachedRecordSet) restart(ctx context.Context) error {
	if err := s.closeCursor(); err != nil {
		s.log.Warn().Err(err).Msg("closing cursor")
	}
	it, err := s.persistor.Iterator(ctx, s.criteria, s.persistor.View().OrderBy)
	if err != nil {
		s.log.Error().Err(err).Str("view", s.persistor.View().Name).Msg("opening cursor failed")
		return persistenceError(LoadCursor, err)
	}
	s.cursor, s.pos = it, 0
	return nil
}

func (s *CachedRecordSet) closeCursor() error {
	if s.cursor == nil {
		return nil
	}
	err := s.cursor.Close()
	s.cursor, s.pos = nil, 0
	return err
}
