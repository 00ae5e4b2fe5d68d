// Package metrics exposes Prometheus instrumentation for strategos:
// worker counts by status/health, circuit breaker state, correction
// loop iteration counts, API request volume, and sweep/rehydration
// effects, served over GET /metrics in Prometheus text exposition
// format. All metrics are registered at package init. Worker and
// breaker metrics are updated by a Collector polling the registry and
// breaker registry on a fixed tick; API request metrics are updated by
// pkg/api's middleware. The correction, sweep and session-discovery
// metrics are registered but nothing in this repository updates them.
package metrics
