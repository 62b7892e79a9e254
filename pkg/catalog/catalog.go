// Package catalog opens the configured views on their record store
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/segmentio/ksuid"
	"github.com/ssargent/recordkit/pkg/config"
	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/memstore"
	"github.com/ssargent/recordkit/pkg/recordset"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/storage"
	"go.uber.org/multierr"
)

// Store is a persistor that also accepts writes
type Store interface {
	recordset.Persistor
	Insert(ctx context.Context, r *schema.Record) (ksuid.KSUID, error)
	Update(ctx context.Context, id ksuid.KSUID, r *schema.Record) error
	Delete(ctx context.Context, id ksuid.KSUID) error
	Get(ctx context.Context, id ksuid.KSUID) (*schema.Record, error)
}

var (
	_ Store = (*memstore.Store)(nil)
	_ Store = (*storage.Persistor)(nil)
)

// Catalog maps view names to the stores holding their records
type Catalog struct {
	views   []*schema.View
	stores  map[string]Store
	closers []io.Closer
}

// Open builds the configured views and opens their stores under the data
// directory
func Open(cfg *config.Config) (*Catalog, error) {
	views, err := cfg.BuildViews()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	log := logger.GetLogger("catalog")

	c := &Catalog{stores: make(map[string]Store, len(views))}
	switch cfg.Storage.Engine {
	case config.EnginePebble, "":
		db, err := storage.Open(filepath.Join(cfg.DataDir, "pebble"), storage.Options{Sync: cfg.Storage.Sync})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db)
		for _, view := range views {
			c.add(view, db.Persistor(view))
		}
	case config.EngineMemory:
		for _, view := range views {
			s, err := memstore.New(view, memstore.Options{
				JournalDir:    filepath.Join(cfg.DataDir, "journal"),
				FsyncInterval: cfg.Storage.FsyncInterval,
			})
			if err != nil {
				return nil, multierr.Append(err, c.Close())
			}
			c.closers = append(c.closers, s)
			c.add(view, s)
		}
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}

	log.Info().Str("engine", cfg.Storage.Engine).Int("views", len(views)).Str("data_dir", cfg.DataDir).Msg("catalog opened")
	return c, nil
}

// New creates a catalog over stores that are already open. The catalog
// does not close them.
func New(stores ...Store) *Catalog {
	c := &Catalog{stores: make(map[string]Store, len(stores))}
	for _, s := range stores {
		c.add(s.View(), s)
	}
	return c
}

func (c *Catalog) add(view *schema.View, s Store) {
	c.views = append(c.views, view)
	c.stores[view.Name] = s
}

// Views returns the views in declaration order
func (c *Catalog) Views() []*schema.View {
	return append([]*schema.View{}, c.views...)
}

func (c *Catalog) Store(view string) (Store, bool) {
	s, ok := c.stores[view]
	return s, ok
}

// Close closes every store the catalog opened
func (c *Catalog) Close() error {
	var err error
	for _, closer := range c.closers {
		err = multierr.Append(err, closer.Close())
	}
	c.closers = nil
	return err
}
