// Package api serves the views of a catalog over HTTP
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssargent/recordkit/pkg/catalog"
	"github.com/ssargent/recordkit/pkg/logger"
)

// NewRouter builds the HTTP routes over the views of c
func NewRouter(c *catalog.Catalog, config ServerConfig, metrics *Metrics) (http.Handler, error) {
	server, err := NewServer(c, config, metrics)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(server.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if config.Registry != nil {
		gatherer = config.Registry
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(config.APIKey)))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))

		r.Get("/views", metrics.InstrumentHandler("GET", "/api/v1/views", server.handleListViews))
		r.Route("/views/{view}", func(r chi.Router) {
			r.Get("/", metrics.InstrumentHandler("GET", "/api/v1/views/{view}", server.handleGetView))
			r.Get("/count", metrics.InstrumentHandler("GET", "/api/v1/views/{view}/count", server.handleCount))
			r.Post("/query", metrics.InstrumentHandler("POST", "/api/v1/views/{view}/query", server.handleQuery))

			r.Get("/records", metrics.InstrumentHandler("GET", "/api/v1/views/{view}/records", server.handleListRecords))
			r.Post("/records", metrics.InstrumentHandler("POST", "/api/v1/views/{view}/records", server.handleInsert))
			r.Get("/records/{id}", metrics.InstrumentHandler("GET", "/api/v1/views/{view}/records/{id}", server.handleGetRecord))
			r.Put("/records/{id}", metrics.InstrumentHandler("PUT", "/api/v1/views/{view}/records/{id}", server.handleUpdate))
			r.Delete("/records/{id}", metrics.InstrumentHandler("DELETE", "/api/v1/views/{view}/records/{id}", server.handleDelete))
		})
	})

	return r, nil
}

// StartServer serves the catalog until ctx is done, then shuts down
func StartServer(ctx context.Context, c *catalog.Catalog, config ServerConfig) error {
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	if config.Registry != nil {
		reg = config.Registry
	}
	metrics := NewMetrics(reg)

	handler, err := NewRouter(c, config, metrics)
	if err != nil {
		return err
	}

	log := logger.GetLogger("api")
	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Int("views", len(c.Views())).Msg("starting recordkit REST API server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
