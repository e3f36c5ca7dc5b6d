// Package metrics defines the gateway's Prometheus collectors, grounded on
// the teacher's metric.Metrics registry: one plain gauge per observable
// quantity, namespaced "webpa_gateway", updated by whichever
// component owns the underlying counter (the cache's Statistics, the
// service's lifecycle status) rather than computed here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/webpa-gateway/cache"
)

// GatewayMetrics holds every collector this process registers. Callers
// construct one per process and pass it to prometheus.Registry.MustRegister.
type GatewayMetrics struct {
	ServiceStatus  prometheus.Gauge
	CacheHits      prometheus.Gauge
	CacheMisses    prometheus.Gauge
	CacheEvictions prometheus.Gauge
	CacheSize      prometheus.Gauge
	CacheHitRatio  prometheus.Gauge
}

// NewGatewayMetrics constructs every collector, unregistered.
func NewGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{
		ServiceStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webpa_gateway",
			Subsystem: "service",
			Name:      "status",
			Help:      "Gateway service status (0=stopped, 1=starting, 2=running, 3=stopping)",
		}),
		CacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webpa_gateway",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total parameter cache hits since process start.",
		}),
		CacheMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webpa_gateway",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total parameter cache misses since process start.",
		}),
		CacheEvictions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webpa_gateway",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total parameter cache evictions since process start.",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webpa_gateway",
			Subsystem: "cache",
			Name:      "size",
			Help:      "Current parameter cache entry count.",
		}),
		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webpa_gateway",
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Parameter cache hit ratio since process start.",
		}),
	}
}

// Collectors returns every collector, for bulk registration with a
// prometheus.Registerer.
func (m *GatewayMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ServiceStatus, m.CacheHits, m.CacheMisses, m.CacheEvictions,
		m.CacheSize, m.CacheHitRatio,
	}
}

// ObserveCache snapshots c's Statistics into the cache gauges. Statistics
// already tracks cumulative totals internally, so each of these gauges just
// republishes its current reading; safe to call repeatedly, e.g. from a
// periodic ticker or a health-check handler.
func (m *GatewayMetrics) ObserveCache(c *cache.Cache) {
	summary := c.Stats().Summary()
	m.CacheHits.Set(float64(summary.Hits))
	m.CacheMisses.Set(float64(summary.Misses))
	m.CacheEvictions.Set(float64(summary.Evictions))
	m.CacheSize.Set(float64(summary.CurrentSize))
	m.CacheHitRatio.Set(summary.HitRatio)
}
