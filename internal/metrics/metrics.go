// Package metrics holds Prometheus instruments that are used across the
// publisher.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dweb_publish_total",
			Help: "Published pages by publish mode and outcome.",
		}, []string{"mode", "outcome"})

	ResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dweb_resolve_total",
			Help: "Resolved pages by publish mode and outcome.",
		}, []string{"mode", "outcome"})

	GatewayFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dweb_gateway_fallback_total",
			Help: "Fetches that fell back from the relay to a public gateway.",
		})

	GraphWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dweb_graph_wait_seconds",
			Help:    "Time spent waiting for eventually consistent graph reads.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		})
)

func init() {
	prometheus.MustRegister(
		PublishTotal,
		ResolveTotal,
		GatewayFallbackTotal,
		GraphWaitSeconds,
	)
}
