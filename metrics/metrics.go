// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	// Go Internal Packages
	"net/http"
	"strconv"

	// External Packages
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	cycles *prometheus.CounterVec
	writes *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed tag cycles by mode and outcome.",
		}, []string{"mode", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_write_attempts_total",
			Help:      "Tag write attempts by result.",
		}, []string{"ok"}),
	}

	reg.MustRegister(
		m.cycles,
		m.writes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) CycleCompleted(mode, outcome string) {
	m.cycles.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) WriteAttempted(ok bool) {
	m.writes.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
