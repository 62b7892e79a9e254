// Package storage persists the records of views in a pebble database. Each
// view keeps its records under keys that sort in view order, plus an id
// index, so paging by order key is a seek.
package storage

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/ssargent/recordkit/pkg/codec"
	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/schema"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate order key")
)

// key spaces
const (
	recordSpace = 'r'
	idSpace     = 'i'
)

// Options configures a DB
type Options struct {
	// Sync makes every write durable before it returns
	Sync   bool
	Logger *logger.Logger
}

// DB is a pebble database holding the records of any number of views
type DB struct {
	db     *pebble.DB
	codec  *codec.RecordCodec
	log    *logger.Logger
	write  *pebble.WriteOptions
	mutex  sync.Mutex // serializes writers
	closed bool
}

// Open opens or creates the database in dir
func Open(dir string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger("storage")
	}
	db, err := pebble.Open(dir, &pebble.Options{Logger: pebbleLogger{opts.Logger}})
	if err != nil {
		return nil, errors.WithMessagef(err, "open pebble at %s", dir)
	}
	write := pebble.NoSync
	if opts.Sync {
		write = pebble.Sync
	}
	opts.Logger.Info().Str("dir", dir).Bool("sync", opts.Sync).Msg("storage opened")
	return &DB{db: db, codec: codec.NewRecordCodec(), log: opts.Logger, write: write}, nil
}

// Persistor returns the persistor of view. Views sharing a name share
// their records, so a view must keep its fields and order across opens.
func (d *DB) Persistor(view *schema.View) *Persistor {
	return &Persistor{
		db:      d,
		view:    view,
		records: spacePrefix(recordSpace, view.Name),
		ids:     spacePrefix(idSpace, view.Name),
	}
}

func (d *DB) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// spacePrefix returns [space][view name][0x00]
func spacePrefix(space byte, view string) []byte {
	p := make([]byte, 0, len(view)+2)
	p = append(p, space)
	p = append(p, view...)
	return append(p, 0)
}

// upperBound returns the smallest key greater than every key with prefix
func upperBound(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// pebbleLogger routes pebble's own logging through zerolog
type pebbleLogger struct {
	log *logger.Logger
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l pebbleLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msg(fmt.Sprintf(format, args...))
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprintf(format, args...))
}
