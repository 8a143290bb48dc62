package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for migration runs.
type Metrics struct {
	config MetricsConfig

	unitsProcessed *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	pushDuration   *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	errorsByClass  *prometheus.CounterVec
	policyDenials  *prometheus.CounterVec
	confidence     prometheus.Histogram
	activeRuns     prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a metrics collector. When disabled, all record
// methods are no-ops.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		unitsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_processed_total",
				Help:      "Total work units processed, by vendor, entity kind, and terminal status",
			},
			[]string{"vendor", "kind", "status"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Vendor fetch latency",
				Buckets:   buckets,
			},
			[]string{"vendor"},
		),
		pushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "push_duration_seconds",
				Help:      "Target push latency",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Unit retries by error class",
			},
			[]string{"class"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Unit failures by error class",
			},
			[]string{"class"},
		),
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Work units denied by policy",
			},
			[]string{"policy"},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_confidence",
				Help:      "Aggregate conversion confidence per converted process",
				Buckets:   []float64{0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
			},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Currently executing migration runs",
			},
		),
	}

	registry.MustRegister(
		m.unitsProcessed, m.fetchDuration, m.pushDuration,
		m.retries, m.errorsByClass, m.policyDenials,
		m.confidence, m.activeRuns,
	)
	return m, nil
}

// Serve starts the metrics HTTP endpoint. It returns immediately; the
// server runs until Shutdown.
func (m *Metrics) Serve() error {
	if !m.config.Enabled {
		return nil
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = m.server.ListenAndServe()
	}()
	return nil
}

// Close stops the metrics endpoint.
func (m *Metrics) Close() error {
	if m.server != nil {
		return m.server.Close()
	}
	return nil
}

// RecordUnit records a terminal work unit status.
func (m *Metrics) RecordUnit(vendor, kind, status string) {
	if m.unitsProcessed != nil {
		m.unitsProcessed.WithLabelValues(vendor, kind, status).Inc()
	}
}

// RecordFetch records a vendor fetch duration.
func (m *Metrics) RecordFetch(vendor string, d time.Duration) {
	if m.fetchDuration != nil {
		m.fetchDuration.WithLabelValues(vendor).Observe(d.Seconds())
	}
}

// RecordPush records a target push duration.
func (m *Metrics) RecordPush(kind string, d time.Duration) {
	if m.pushDuration != nil {
		m.pushDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// RecordRetry records a retry attempt for an error class.
func (m *Metrics) RecordRetry(class string) {
	if m.retries != nil {
		m.retries.WithLabelValues(class).Inc()
	}
}

// RecordError records a terminal failure for an error class.
func (m *Metrics) RecordError(class string) {
	if m.errorsByClass != nil {
		m.errorsByClass.WithLabelValues(class).Inc()
	}
}

// RecordPolicyDenial records a policy denial.
func (m *Metrics) RecordPolicyDenial(policy string) {
	if m.policyDenials != nil {
		m.policyDenials.WithLabelValues(policy).Inc()
	}
}

// RecordConfidence records an aggregate conversion confidence.
func (m *Metrics) RecordConfidence(c float64) {
	if m.confidence != nil {
		m.confidence.Observe(c)
	}
}

// RunStarted increments the active run gauge.
func (m *Metrics) RunStarted() {
	if m.activeRuns != nil {
		m.activeRuns.Inc()
	}
}

// RunFinished decrements the active run gauge.
func (m *Metrics) RunFinished() {
	if m.activeRuns != nil {
		m.activeRuns.Dec()
	}
}
