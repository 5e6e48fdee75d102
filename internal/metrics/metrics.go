// Package metrics exposes extraction counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/insightdelivered/statement-extractor/internal/extract"
)

// Result labels of DocumentsTotal.
const (
	ResultExtracted = "extracted"
	ResultPartial   = "partial"
	ResultFailed    = "failed"
)

// Metrics observes extraction results. It implements extract.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	documents *prometheus.CounterVec
	items     *prometheus.CounterVec
	errors    *prometheus.CounterVec
	duration  prometheus.Histogram
}

// New registers the collectors on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extract_documents_total",
			Help: "Documents processed, by outcome.",
		}, []string{"result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extract_items_total",
			Help: "Items extracted, by bank and kind.",
		}, []string{"bank", "kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extract_errors_total",
			Help: "Extraction errors, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "extract_duration_seconds",
			Help:    "Time spent extracting one document.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	m.Registry.MustRegister(
		m.documents, m.items, m.errors, m.duration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveResult(r *extract.Result, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())

	switch {
	case len(r.Items) == 0:
		m.documents.WithLabelValues(ResultFailed).Inc()
	case len(r.Errors) > 0:
		m.documents.WithLabelValues(ResultPartial).Inc()
	default:
		m.documents.WithLabelValues(ResultExtracted).Inc()
	}
	for _, item := range r.Items {
		m.items.WithLabelValues(item.Bank, item.Kind).Inc()
	}
	for _, e := range r.Errors {
		m.errors.WithLabelValues(string(e.Kind)).Inc()
	}
}
