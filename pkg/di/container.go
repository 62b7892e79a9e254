// Package di provides dependency injection container
package di

import (
	"github.com/ssargent/recordkit/pkg/api" //nolint:depguard
	"github.com/ssargent/recordkit/pkg/catalog"
	"github.com/ssargent/recordkit/pkg/config"
)

// CatalogOpener opens the views a configuration declares
type CatalogOpener func(cfg *config.Config) (*catalog.Catalog, error)

// Container holds all the dependencies for the application
type Container struct {
	catalogOpener CatalogOpener
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		catalogOpener: catalog.Open,
		serverFactory: api.NewServerFactory(),
	}
}

// GetCatalogOpener returns the catalog opener
func (c *Container) GetCatalogOpener() CatalogOpener {
	return c.catalogOpener
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetCatalogOpener allows overriding the catalog opener (for testing)
func (c *Container) SetCatalogOpener(opener CatalogOpener) {
	c.catalogOpener = opener
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
