package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scalux/scalux/pkg/domain"
)

// Metrics holds the Prometheus collectors for mode transitions.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	modes       prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry, so several
// instances can coexist in one process (tests, embedded hosts).
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scalux_transitions_total",
				Help: "Total number of committed mode transitions",
			},
			[]string{"kind"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scalux_transition_errors_total",
				Help: "Total number of rejected mode transitions",
			},
			[]string{"kind", "reason"},
		),
		modes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalux_modes",
			Help: "Number of modes in the compiled tree",
		}),
	}
	m.registry.MustRegister(m.transitions, m.errors, m.modes)
	return m
}

// Registry exposes the underlying registry for hosts that merge collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// SetModes records the size of the current tree.
func (m *Metrics) SetModes(n int) {
	m.modes.Set(float64(n))
}

// Hooks returns lifecycle hooks that record every transition and rejection.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(string(e.Kind)).Inc()
		},
		OnReject: func(_ context.Context, e *domain.RejectEvent) {
			m.errors.WithLabelValues(string(e.Kind), Reason(e.Err)).Inc()
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Reason maps an error to a short, bounded label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrUnknownMode):
		return "unknown_mode"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrNothingToUndo):
		return "nothing_to_undo"
	case errors.Is(err, domain.ErrNothingToRedo):
		return "nothing_to_redo"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}
