// Package metrics exposes the assistant's Prometheus collectors on a
// dedicated registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	installOnce sync.Once
	pending     []prometheus.Collector
)

// register queues collectors declared by this package's init functions.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs the queued assistant collectors together with the Go
// runtime and process collectors. Later calls are no-ops.
func MustRegister() {
	installOnce.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry.MustRegister(pending...)
	})
}

// Handler serves the assistant registry. Collectors show up only after
// MustRegister.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
