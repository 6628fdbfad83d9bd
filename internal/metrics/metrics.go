// Package metrics counts analysis outcomes on a private prometheus registry.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// File outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeCached     = "cached"
	OutcomeParseError = "parse_error"
	OutcomeReadError  = "read_error"
	OutcomeTooLarge   = "too_large"
	OutcomeCancelled  = "cancelled"
)

// Call resolutions.
const (
	ResolutionResolved   = "resolved"
	ResolutionUnresolved = "unresolved"
)

// Metrics groups the counters the engine updates. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FilesAnalyzed   *prometheus.CounterVec
	CallsAttributed *prometheus.CounterVec
	HookFailures    prometheus.Counter
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FilesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callmap",
			Name:      "files_analyzed_total",
			Help:      "Files processed, by outcome.",
		}, []string{"outcome"}),
		CallsAttributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callmap",
			Name:      "calls_attributed_total",
			Help:      "Call sites seen, by whether a library was resolved.",
		}, []string{"resolution"}),
		HookFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callmap",
			Name:      "hook_failures_total",
			Help:      "Hook script runs that failed and left the report unchanged.",
		}),
	}
	m.registry.MustRegister(m.FilesAnalyzed, m.CallsAttributed, m.HookFailures)
	return m
}

// Registry returns the registry the counters live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// FileDone records one processed file.
func (m *Metrics) FileDone(outcome string) {
	if m == nil {
		return
	}
	m.FilesAnalyzed.WithLabelValues(outcome).Inc()
}

// CallsDone records the resolution split of one file's calls.
func (m *Metrics) CallsDone(resolved, unresolved int) {
	if m == nil {
		return
	}
	m.CallsAttributed.WithLabelValues(ResolutionResolved).Add(float64(resolved))
	m.CallsAttributed.WithLabelValues(ResolutionUnresolved).Add(float64(unresolved))
}

// HookFailed records a failed hook run.
func (m *Metrics) HookFailed() {
	if m == nil {
		return
	}
	m.HookFailures.Inc()
}

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
