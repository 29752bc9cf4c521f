// Package metrics exposes parse outcomes as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
)

var fields = []string{"vendor", "amount", "currency", "date", "tax"}

// Metrics records parses. It satisfies core.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	parses      *prometheus.CounterVec
	needsReview *prometheus.CounterVec
	fieldHits   *prometheus.CounterVec
	warnings    prometheus.Counter
	failures    *prometheus.CounterVec
	confidence  *prometheus.HistogramVec
	latency     *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		parses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_parser_parses_total",
				Help: "Total number of receipts parsed",
			},
			[]string{"source"},
		),
		needsReview: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_parser_needs_review_total",
				Help: "Parses flagged for manual review",
			},
			[]string{"source"},
		),
		fieldHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_parser_field_extracted_total",
				Help: "Parses that produced a value for the field",
			},
			[]string{"field"},
		),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipt_parser_warnings_total",
			Help: "Warnings attached to parse results",
		}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_parser_failures_total",
				Help: "Processing failures by stage",
			},
			[]string{"stage"},
		),
		confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "receipt_parser_confidence",
				Help:    "Overall parse confidence",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"source"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "receipt_parser_duration_seconds",
				Help:    "Time from file bytes to stored receipt",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
			},
			[]string{"source"},
		),
	}
	m.reg.MustRegister(
		m.parses, m.needsReview, m.fieldHits, m.warnings, m.failures, m.confidence, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveParse(source string, res parser.Result, elapsed time.Duration) {
	if source == "" {
		source = "unknown"
	}
	m.parses.WithLabelValues(source).Inc()
	if res.NeedsReview {
		m.needsReview.WithLabelValues(source).Inc()
	}
	present := []bool{res.Vendor != nil, res.Amount != nil, res.Currency != nil, res.Date != nil, res.Tax != nil}
	for i, ok := range present {
		if ok {
			m.fieldHits.WithLabelValues(fields[i]).Inc()
		}
	}
	m.warnings.Add(float64(len(res.Debug.Warnings)))
	m.confidence.WithLabelValues(source).Observe(res.Confidence)
	m.latency.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveFailure(stage string) {
	m.failures.WithLabelValues(stage).Inc()
}

// Registry is exposed for callers that add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
