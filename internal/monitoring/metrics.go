// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - runs/ready/failed:   Bootstrap run outcomes
//   - compiles:            Scripts compiled (runs and /v1/bootstrap previews)
//   - widget_unavailable:  Degraded runs where the chat widget had no API
//   - requests/successes:  HTTP request counts and average latency
//   - cache_hits/misses:   Registry cache performance
//
// Exposed on GET /health. For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	runs              atomic.Int64
	ready             atomic.Int64
	failed            atomic.Int64
	compiles          atomic.Int64
	widgetUnavailable atomic.Int64
	requests          atomic.Int64
	successes         atomic.Int64
	latencyMs         atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRunStarted records a new bootstrap run.
func (mc *MetricsCollector) RecordRunStarted() { mc.runs.Add(1) }

// RecordRunFinished records a terminal run outcome.
func (mc *MetricsCollector) RecordRunFinished(ready bool) {
	if ready {
		mc.ready.Add(1)
		return
	}
	mc.failed.Add(1)
}

// RecordCompile records a compiled script.
func (mc *MetricsCollector) RecordCompile() { mc.compiles.Add(1) }

// RecordWidgetUnavailable records a degraded widget interaction.
func (mc *MetricsCollector) RecordWidgetUnavailable() { mc.widgetUnavailable.Add(1) }

// RecordRequest records a request and its latency.
func (mc *MetricsCollector) RecordRequest(success bool, latency time.Duration) {
	mc.requests.Add(1)
	mc.latencyMs.Add(latency.Milliseconds())
	if success {
		mc.successes.Add(1)
	}
}

// RecordCacheHit records a cache hit.
func (mc *MetricsCollector) RecordCacheHit() { mc.cacheHits.Add(1) }

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss() { mc.cacheMisses.Add(1) }

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	var avg int64
	if n := mc.requests.Load(); n > 0 {
		avg = mc.latencyMs.Load() / n
	}
	return map[string]int64{
		"avg_latency_ms":     avg,
		"runs":               mc.runs.Load(),
		"ready":              mc.ready.Load(),
		"failed":             mc.failed.Load(),
		"compiles":           mc.compiles.Load(),
		"widget_unavailable": mc.widgetUnavailable.Load(),
		"requests":           mc.requests.Load(),
		"successes":          mc.successes.Load(),
		"cache_hits":         mc.cacheHits.Load(),
		"cache_misses":       mc.cacheMisses.Load(),
	}
}
