// Package metrics exposes Prometheus instrumentation of the registry.
package metrics

import (
	"net/http"

	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nmos_registry"

var (
	Resources = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resources",
		Help:      "Number of registered resources by type.",
	}, []string{"type"})

	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Number of store mutations by resource type and operation.",
	}, []string{"type", "op"})

	Expirations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expirations_total",
		Help:      "Number of resources removed by the expiration sweeper.",
	})

	Subscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscriptions",
		Help:      "Number of subscriptions.",
	})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Number of connections attached to subscriptions.",
	})

	Grains = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grains_total",
		Help:      "Number of grains queued to connections.",
	})

	DroppedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_connections_total",
		Help:      "Number of connections closed because their queue was full.",
	})
)

// StoreObserver keeps the resource metrics in step with the store.
type StoreObserver struct{}

func (StoreObserver) OnMutation(_ *store.Txn, op resource.Op, pre, post *resource.Resource) {
	r := post
	if r == nil {
		r = pre
	}
	if r == nil {
		return
	}
	t := r.Type.String()
	Mutations.WithLabelValues(t, op.String()).Inc()
	switch op {
	case resource.Created:
		Resources.WithLabelValues(t).Inc()
	case resource.Deleted:
		Resources.WithLabelValues(t).Dec()
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
