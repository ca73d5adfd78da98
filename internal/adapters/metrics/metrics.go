// Package metrics exposes custody signals as prometheus counters.
package metrics

import (
	"net/http"

	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeOK labels operations that returned no error. Failures are labelled
// with app.KindName.
const OutcomeOK = "ok"

// Recorder implements app.Observer on a dedicated registry.
type Recorder struct {
	registry *prometheus.Registry

	// Custody mutations by operation and outcome
	Operations *prometheus.CounterVec

	// Flagged weight anomalies by severity
	Anomalies *prometheus.CounterVec

	// Chain verifications by entity type and result
	Verifications *prometheus.CounterVec

	// Best-effort sell request mirror failures by operation
	MirrorFailures *prometheus.CounterVec
}

var _ app.Observer = (*Recorder)(nil)

// New creates a Recorder with all counters registered. Process and Go
// runtime collectors are included so /metrics is useful on its own.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ewtrail_custody_operations_total",
			Help: "Total custody operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		Anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ewtrail_anomalies_flagged_total",
			Help: "Total weight variance anomalies flagged by severity",
		}, []string{"severity"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ewtrail_chain_verifications_total",
			Help: "Total audit chain verifications by entity type and result",
		}, []string{"entity_type", "result"}),
		MirrorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ewtrail_mirror_sync_failures_total",
			Help: "Total sell request mirror updates that failed after commit",
		}, []string{"operation"}),
	}
}

// Registry returns the registry backing the recorder.
func (m *Recorder) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// OperationCompleted records one custody operation.
func (m *Recorder) OperationCompleted(operation string, err error) {
	if m != nil {
		m.Operations.WithLabelValues(operation, Outcome(err)).Inc()
	}
}

// AnomalyFlagged records one flagged anomaly.
func (m *Recorder) AnomalyFlagged(severity domain.AnomalySeverity) {
	if m != nil {
		m.Anomalies.WithLabelValues(string(severity)).Inc()
	}
}

// ChainVerified records one chain verification.
func (m *Recorder) ChainVerified(entityType domain.EntityType, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "broken"
	}
	m.Verifications.WithLabelValues(string(entityType), result).Inc()
}

// MirrorSyncFailed records one failed sell request mirror update.
func (m *Recorder) MirrorSyncFailed(operation string) {
	if m != nil {
		m.MirrorFailures.WithLabelValues(operation).Inc()
	}
}

// Outcome maps an operation error onto a bounded label value.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return app.KindName(err)
}
