// Package metrics exports csrf decisions as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
)

// Collector counts decisions. Register it once and pass Observe as the
// protector's Diagnostics sink.
type Collector struct {
	Decisions *prometheus.CounterVec
	Rotations *prometheus.CounterVec
}

// New creates the collector and registers it on reg (or the default
// registerer if nil). Registering twice reuses the existing collectors.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csrf",
			Name:      "decisions_total",
			Help:      "CSRF decisions by outcome, credential state, exemption and rejection reason.",
		}, []string{"outcome", "state", "exemption", "reason"}),
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csrf",
			Name:      "rotations_total",
			Help:      "Credentials written, by credential state at entry.",
		}, []string{"state"}),
	}

	var err error
	if c.Decisions, err = register(reg, c.Decisions); err != nil {
		return nil, err
	}
	if c.Rotations, err = register(reg, c.Rotations); err != nil {
		return nil, err
	}
	return c, nil
}

func register(reg prometheus.Registerer, cv *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return cv, nil
}

// Observe records ev. It satisfies csrf.DiagnosticsFunc.
func (c *Collector) Observe(ev csrf.Event) {
	c.Decisions.WithLabelValues(
		ev.Outcome.String(),
		ev.State.String(),
		ev.Exemption.String(),
		string(ev.Reason),
	).Inc()
	if ev.Rotated {
		c.Rotations.WithLabelValues(ev.State.String()).Inc()
	}
}
