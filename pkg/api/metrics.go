package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ssargent/recordkit/pkg/recordset"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Record operation metrics
	recordOperationsTotal   *prometheus.CounterVec
	recordOperationDuration *prometheus.HistogramVec

	// Record set cache metrics
	recordSetLookupsTotal *prometheus.CounterVec
	recordSetsOpen        prometheus.Gauge

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec

	// RecordSets is handed to every record set the server opens
	RecordSets *recordset.Metrics
}

// NewMetrics creates the API metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		// HTTP request metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recordkit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recordkit_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		recordOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_record_operations_total",
				Help: "Total number of record operations by view",
			},
			[]string{"view", "operation", "status"},
		),

		recordOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recordkit_record_operation_duration_seconds",
				Help:    "Record operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"view", "operation"},
		),

		recordSetLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_recordset_cache_lookups_total",
				Help: "Total number of record set cache lookups",
			},
			[]string{"result"},
		),

		recordSetsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "recordkit_recordsets_open",
				Help: "Number of record sets kept between requests",
			},
		),

		// Authentication metrics
		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		// Health check metrics
		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),

		RecordSets: recordset.NewMetrics(reg),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordOperation records a record operation on a view
func (m *Metrics) RecordOperation(view, operation string, err error, start time.Time) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	m.recordOperationsTotal.WithLabelValues(view, operation, status).Inc()
	m.recordOperationDuration.WithLabelValues(view, operation).Observe(time.Since(start).Seconds())
}

// RecordSetLookup records a record set cache hit or miss
func (m *Metrics) RecordSetLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.recordSetLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetRecordSetsOpen(n int) {
	m.recordSetsOpen.Set(float64(n))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		handler(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(method, endpoint, status, time.Since(start))
	}
}

// InstrumentAuthMiddleware counts the requests the auth middleware lets
// through or rejects. Requests without a key are not counted.
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		wrapped := next(h)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			wrapped.ServeHTTP(ww, r)

			if hasAPIKey {
				m.RecordAuthRequest(ww.Status() != http.StatusUnauthorized)
			}
		})
	}
}
