package recordset

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Load kinds
const (
	LoadCount  = "count"
	LoadFirst  = "first"
	LoadNext   = "next"
	LoadReload = "reload"
	LoadCursor = "cursor"
)

// Metrics holds the Prometheus metrics of record sets. A nil *Metrics
// records nothing.
type Metrics struct {
	loadsTotal     *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	recordsFetched *prometheus.CounterVec
	pagesEvicted   prometheus.Counter
}

// NewMetrics creates the record set metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_recordset_loads_total",
				Help: "Total number of persistor round trips by kind and status",
			},
			[]string{"kind", "status"},
		),

		loadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recordkit_recordset_load_duration_seconds",
				Help:    "Persistor round trip duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		recordsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recordkit_recordset_records_fetched_total",
				Help: "Total number of records read from persistors",
			},
			[]string{"kind"},
		),

		pagesEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "recordkit_recordset_pages_evicted_total",
				Help: "Total number of page boundaries dropped from page caches",
			},
		),
	}
}

// RecordLoad records one persistor round trip
func (m *Metrics) RecordLoad(kind string, start time.Time, records int, err error) {
	if m == nil {
		return
	}
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.loadsTotal.WithLabelValues(kind, status).Inc()
	m.loadDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if records > 0 {
		m.recordsFetched.WithLabelValues(kind).Add(float64(records))
	}
}

func (m *Metrics) recordEviction() {
	if m == nil {
		return
	}
	m.pagesEvicted.Inc()
}
