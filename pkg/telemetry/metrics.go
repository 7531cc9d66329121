package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the provisioning daemon.
type Metrics struct {
	config MetricsConfig

	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec

	commandsIssued *prometheus.CounterVec
	abortsTotal    *prometheus.CounterVec

	activeSessions prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a metrics collector. With metrics disabled every
// recording method is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "sessions_started_total",
				Help:      "Total number of provisioning sessions started",
			},
			[]string{"mode"},
		),
		sessionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "sessions_completed_total",
				Help:      "Total number of provisioning sessions completed",
			},
			[]string{"mode", "status"},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "session_duration_seconds",
				Help:      "Duration of provisioning sessions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode", "status"},
		),
		commandsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "commands_issued_total",
				Help:      "Total number of shell commands issued to executors",
			},
			[]string{"mode"},
		),
		abortsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "aborts_total",
				Help:      "Total number of fatal provider aborts",
			},
			[]string{"mode"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "active_sessions",
				Help:      "Number of sessions currently in progress",
			},
		),
	}

	registry.MustRegister(
		m.sessionsStarted,
		m.sessionsCompleted,
		m.sessionDuration,
		m.commandsIssued,
		m.abortsTotal,
		m.activeSessions,
	)
	return m
}

// SessionStarted records the start of a session.
func (m *Metrics) SessionStarted(mode string) {
	if m.registry == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(mode).Inc()
	m.activeSessions.Inc()
}

// SessionCompleted records the end of a session.
func (m *Metrics) SessionCompleted(mode, status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.sessionsCompleted.WithLabelValues(mode, status).Inc()
	m.sessionDuration.WithLabelValues(mode, status).Observe(duration.Seconds())
	m.activeSessions.Dec()
}

// CommandIssued records one dispatched command.
func (m *Metrics) CommandIssued(mode string) {
	if m.registry == nil {
		return
	}
	m.commandsIssued.WithLabelValues(mode).Inc()
}

// Abort records one fatal provider abort.
func (m *Metrics) Abort(mode string) {
	if m.registry == nil {
		return
	}
	m.abortsTotal.WithLabelValues(mode).Inc()
}

// Serve starts the metrics HTTP endpoint. It blocks until the server stops.
func (m *Metrics) Serve() error {
	if m.registry == nil {
		return nil
	}
	mux := http.NewServeMux()
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the metrics HTTP endpoint.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
