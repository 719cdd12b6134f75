// Package metrics exports list store activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricLoadsTotal          = "rentaride_resource_loads_total"
	MetricMutationsTotal      = "rentaride_resource_mutations_total"
	MetricStaleResponsesTotal = "rentaride_resource_stale_responses_total"
	MetricLoadDurationSeconds = "rentaride_resource_load_duration_seconds"
	MetricItems               = "rentaride_resource_items"
)

// PrometheusExporter records list store events and serves them over HTTP.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type PrometheusExporter struct {
	mu sync.RWMutex

	config PrometheusExporterConfig

	registry *prometheus.Registry

	loadsTotal          *prometheus.CounterVec
	mutationsTotal      *prometheus.CounterVec
	staleResponsesTotal *prometheus.CounterVec
	loadDurationSeconds *prometheus.HistogramVec
	items               *prometheus.GaugeVec

	server  *http.Server
	ln      net.Listener
	running bool

	lastError error
}

// PrometheusExporterConfig holds configuration for the Prometheus exporter.
type PrometheusExporterConfig struct {
	// Addr is the listen address of the metrics endpoint.
	// Default: ":9464"
	Addr string

	// Path is the URL path for the metrics endpoint.
	// Default: /metrics
	Path string

	// HistogramBuckets are the buckets of the load duration histogram.
	// Default: prometheus.DefBuckets
	HistogramBuckets []float64
}

// DefaultPrometheusExporterConfig returns default configuration.
func DefaultPrometheusExporterConfig() PrometheusExporterConfig {
	return PrometheusExporterConfig{
		Addr:             ":9464",
		Path:             "/metrics",
		HistogramBuckets: prometheus.DefBuckets,
	}
}

// NewPrometheusExporter creates a new Prometheus exporter with its own registry.
func NewPrometheusExporter(config PrometheusExporterConfig) *PrometheusExporter {
	if config.Addr == "" {
		config.Addr = ":9464"
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if len(config.HistogramBuckets) == 0 {
		config.HistogramBuckets = prometheus.DefBuckets
	}

	e := &PrometheusExporter{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	e.initMetrics()
	return e
}

func (e *PrometheusExporter) initMetrics() {
	e.loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricLoadsTotal,
			Help: "Total number of list loads by outcome (loaded, empty, failed).",
		},
		[]string{"resource", "outcome"},
	)

	e.mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricMutationsTotal,
			Help: "Total number of optimistic mutations by outcome (committed, rolled_back, rejected).",
		},
		[]string{"resource", "outcome"},
	)

	e.staleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricStaleResponsesTotal,
			Help: "Load responses discarded because a newer load had started.",
		},
		[]string{"resource"},
	)

	e.loadDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricLoadDurationSeconds,
			Help:    "Duration of list loads in seconds.",
			Buckets: e.config.HistogramBuckets,
		},
		[]string{"resource"},
	)

	e.items = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricItems,
			Help: "Number of items held by the list store after the last successful load.",
		},
		[]string{"resource"},
	)

	e.registry.MustRegister(
		e.loadsTotal,
		e.mutationsTotal,
		e.staleResponsesTotal,
		e.loadDurationSeconds,
		e.items,
	)
}

// Start starts the HTTP server for the metrics endpoint.
func (e *PrometheusExporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	ln, err := net.Listen("tcp", e.config.Addr)
	if err != nil {
		return fmt.Errorf("starting Prometheus exporter: %w", err)
	}
	e.ln = ln

	mux := http.NewServeMux()
	mux.Handle(e.config.Path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.mu.Lock()
			e.lastError = err
			e.mu.Unlock()
		}
	}()

	e.running = true
	return nil
}

// Stop stops the HTTP server.
func (e *PrometheusExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false

	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// LoadFinished records one completed load.
func (e *PrometheusExporter) LoadFinished(resource, outcome string, duration time.Duration, items int) {
	e.loadsTotal.WithLabelValues(resource, outcome).Inc()
	e.loadDurationSeconds.WithLabelValues(resource).Observe(duration.Seconds())
	if outcome != "failed" {
		e.items.WithLabelValues(resource).Set(float64(items))
	}
}

// MutationFinished records one optimistic mutation.
func (e *PrometheusExporter) MutationFinished(resource, outcome string) {
	e.mutationsTotal.WithLabelValues(resource, outcome).Inc()
}

// StaleResponse records a discarded load response.
func (e *PrometheusExporter) StaleResponse(resource string) {
	e.staleResponsesTotal.WithLabelValues(resource).Inc()
}

// GetPath returns the metrics endpoint path.
func (e *PrometheusExporter) GetPath() string {
	return e.config.Path
}

// GetAddress returns the full URL of the metrics endpoint, or "" when stopped.
func (e *PrometheusExporter) GetAddress() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ln == nil || !e.running {
		return ""
	}
	return fmt.Sprintf("http://%s%s", e.ln.Addr().String(), e.config.Path)
}

// IsRunning returns whether the exporter is running.
func (e *PrometheusExporter) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// LastError returns the last error from the HTTP server.
func (e *PrometheusExporter) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// Registry returns the Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
