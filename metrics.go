package session

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Restore outcomes recorded by Metrics.
const (
	RestoreHit     = "hit"
	RestoreMiss    = "miss"
	RestoreInvalid = "invalid"
	RestoreError   = "error"
)

// Label constants for metrics.
const (
	LabelOperation = "operation"
	LabelResult    = "result"
)

// Metrics provides Prometheus metrics for session factories.
// A nil *Metrics records nothing.
type Metrics struct {
	restoresTotal    *prometheus.CounterVec
	storeWritesTotal *prometheus.CounterVec
	operationsTotal  *prometheus.CounterVec
	operationSeconds *prometheus.HistogramVec
}

// NewMetrics creates session metrics and registers them with registry.
// If registry is nil, metrics are created but not registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		restoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupware",
				Subsystem: "session",
				Name:      "restores_total",
				Help:      "Session restore attempts from session storage by outcome",
			},
			[]string{LabelResult},
		),
		storeWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupware",
				Subsystem: "session",
				Name:      "store_writes_total",
				Help:      "Writes of resolved sessions to session storage",
			},
			[]string{LabelResult},
		),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupware",
				Subsystem: "session",
				Name:      "operations_total",
				Help:      "Factory operations by operation and result",
			},
			[]string{LabelOperation, LabelResult},
		),
		operationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "groupware",
				Subsystem: "session",
				Name:      "operation_duration_seconds",
				Help:      "Latency of factory operations",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{LabelOperation},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.restoresTotal,
			m.storeWritesTotal,
			m.operationsTotal,
			m.operationSeconds,
		)
	}
	return m
}

func (m *Metrics) observeRestore(result string) {
	if m == nil {
		return
	}
	m.restoresTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeStore(ok bool) {
	if m == nil {
		return
	}
	m.storeWritesTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) observeOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(op, resultLabel(err == nil)).Inc()
	m.operationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Instrumented is a Factory decorator that records CreateSession and
// GetSession outcomes and latency.
type Instrumented struct {
	factory Factory
	metrics *Metrics
}

// NewInstrumented wraps f so that its sessions are counted in m.
func NewInstrumented(f Factory, m *Metrics) *Instrumented {
	return &Instrumented{factory: f, metrics: m}
}

func (d *Instrumented) Server() Directory              { return d.factory.Server() }
func (d *Instrumented) SessionAuth() Auth              { return d.factory.SessionAuth() }
func (d *Instrumented) SessionConfiguration() Config   { return d.factory.SessionConfiguration() }
func (d *Instrumented) SessionStorage() SessionStorage { return d.factory.SessionStorage() }

func (d *Instrumented) SessionValidator(s Session, auth Auth) Validator {
	return d.factory.SessionValidator(s, auth)
}

func (d *Instrumented) Validate(ctx context.Context, s Session) bool {
	return d.factory.Validate(ctx, s)
}

func (d *Instrumented) CreateSession(ctx context.Context) (Session, error) {
	start := time.Now()
	s, err := d.factory.CreateSession(ctx)
	d.metrics.observeOperation("create", start, err)
	return s, err
}

func (d *Instrumented) GetSession(ctx context.Context) (Session, error) {
	start := time.Now()
	s, err := d.factory.GetSession(ctx)
	d.metrics.observeOperation("get", start, err)
	return s, err
}
