package api

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ssargent/recordkit/pkg/config"
	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/recordset"
)

const defaultRecordSets = 128

// cachedSet serializes the requests paging through one record set
type cachedSet struct {
	mu sync.Mutex
	rs *recordset.PageRecordSet
}

// recordSets keeps the record sets of recent queries so that paging
// through the same view and criteria reuses the page boundaries already
// found
type recordSets struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *cachedSet]
	paging  config.Paging
	metrics *Metrics
	log     *logger.Logger
}

func newRecordSets(paging config.Paging, metrics *Metrics, log *logger.Logger) (*recordSets, error) {
	size := paging.RecordSets
	if size <= 0 {
		size = defaultRecordSets
	}
	cache, err := lru.New[string, *cachedSet](size)
	if err != nil {
		return nil, err
	}
	return &recordSets{cache: cache, paging: paging, metrics: metrics, log: log}, nil
}

func setKey(view string, criteria *query.Criteria) string {
	return view + "\x00" + criteria.Key()
}

// get returns the record set of view under criteria, opening it on a miss
func (c *recordSets) get(p recordset.Persistor, criteria *query.Criteria) (*cachedSet, error) {
	key := setKey(p.View().Name, criteria)

	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.cache.Get(key); ok {
		c.metrics.RecordSetLookup(true)
		return set, nil
	}
	c.metrics.RecordSetLookup(false)

	rs, err := recordset.NewPageRecordSet(p, criteria, recordset.Options{
		PageSize: c.paging.PageSize,
		MaxPages: c.paging.MaxPages,
		Logger:   c.log,
		Metrics:  c.metrics.RecordSets,
	})
	if err != nil {
		return nil, err
	}
	set := &cachedSet{rs: rs}
	c.cache.Add(key, set)
	c.metrics.SetRecordSetsOpen(c.cache.Len())
	return set, nil
}

// refresh makes every record set of view forget what it has loaded
func (c *recordSets) refresh(view string) {
	prefix := view + "\x00"

	c.mu.Lock()
	var sets []*cachedSet
	for _, key := range c.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if set, ok := c.cache.Peek(key); ok {
			sets = append(sets, set)
		}
	}
	c.mu.Unlock()

	for _, set := range sets {
		set.mu.Lock()
		set.rs.Refresh()
		set.mu.Unlock()
	}
}

func (c *recordSets) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
