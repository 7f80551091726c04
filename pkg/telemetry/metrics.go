package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for factory activity. A nil
// *Metrics, or one created with metrics disabled, records nothing.
type Metrics struct {
	config MetricsConfig

	builds         *prometheus.CounterVec
	creates        *prometheus.CounterVec
	createDuration *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	definitions    prometheus.Gauge
	loads          *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Total number of successful builds",
			},
			[]string{"factory"},
		),
		creates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "creates_total",
				Help:      "Total number of store creates by outcome",
			},
			[]string{"factory", "status"},
		),
		createDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "create_duration_seconds",
				Help:      "Duration of store creates in seconds",
				Buckets:   buckets,
			},
			[]string{"factory"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of factory errors by kind",
			},
			[]string{"kind"},
		),
		definitions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "definitions",
				Help:      "Current number of registered factories",
			},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definition_files_loaded_total",
				Help:      "Total number of definition files loaded by format and outcome",
			},
			[]string{"format", "status"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.builds,
		m.creates,
		m.createDuration,
		m.errors,
		m.definitions,
		m.loads,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordBuild counts a successful build.
func (m *Metrics) RecordBuild(factory string) {
	if !m.enabled() {
		return
	}
	m.builds.WithLabelValues(factory).Inc()
}

// RecordCreate counts a store create and observes its duration.
func (m *Metrics) RecordCreate(factory, status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.creates.WithLabelValues(factory, status).Inc()
	m.createDuration.WithLabelValues(factory).Observe(duration.Seconds())
}

// RecordError counts a failure by kind.
func (m *Metrics) RecordError(kind string) {
	if !m.enabled() || kind == "" {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

// SetDefinitions sets the registered factory count.
func (m *Metrics) SetDefinitions(count int) {
	if !m.enabled() {
		return
	}
	m.definitions.Set(float64(count))
}

// RecordLoad counts a loaded definition file.
func (m *Metrics) RecordLoad(format string, ok bool) {
	if !m.enabled() {
		return
	}
	m.loads.WithLabelValues(format, strconv.FormatBool(ok)).Inc()
}

// Registry returns the private Prometheus registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint on the configured address until ctx is
// cancelled.
func (m *Metrics) Serve(ctx context.Context) error {
	if !m.enabled() {
		return fmt.Errorf("metrics are disabled")
	}
	return m.ServeOn(ctx, m.config.ListenAddress)
}

// ServeOn is Serve with an explicit listen address.
func (m *Metrics) ServeOn(ctx context.Context, addr string) error {
	if !m.enabled() {
		return fmt.Errorf("metrics are disabled")
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
