// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/ssargent/recordkit/pkg/catalog"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves the catalog until ctx is done
	StartServer(ctx context.Context, c *catalog.Catalog, config ServerConfig) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
