package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for catalog traversal and transfers.
type Metrics struct {
	Registry       *prometheus.Registry
	FetchesTotal   *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	EntriesParsed  prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
	TransfersTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opds_fetches_total",
			Help: "Total catalog page fetches by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opds_fetch_duration_seconds",
			Help:    "Catalog page fetch latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	entriesParsed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opds_entries_parsed_total",
			Help: "Total entries extracted from catalog pages.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opds_errors_total",
			Help: "Total traversal errors by type.",
		},
		[]string{"error_type"},
	)
	transfers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opds_transfers_total",
			Help: "Total book transfers by status.",
		},
		[]string{"status"},
	)

	registry.MustRegister(fetches, fetchDuration, entriesParsed, errorsTotal, transfers)

	return &Metrics{
		Registry:       registry,
		FetchesTotal:   fetches,
		FetchDuration:  fetchDuration,
		EntriesParsed:  entriesParsed,
		ErrorsTotal:    errorsTotal,
		TransfersTotal: transfers,
	}
}

// IncFetch increments the fetch counter for an outcome label.
func (m *Metrics) IncFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchDuration records one fetch latency sample.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// AddEntries counts entries extracted from a parsed page.
func (m *Metrics) AddEntries(n int) {
	if m == nil {
		return
	}
	m.EntriesParsed.Add(float64(n))
}

// IncError increments the error counter for err's type label.
func (m *Metrics) IncError(err error) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorTypeLabel(err)).Inc()
}

// IncTransfer increments the transfer counter for a status label.
func (m *Metrics) IncTransfer(status string) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(status).Inc()
}
