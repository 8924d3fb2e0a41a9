// Package prometheus renders crossAuth metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [crossAuth.Engine] and exposes an
// http.Handler that renders all counters and histograms. Counter names are
// prefixed crossauth_*_total; the single histogram is
// crossauth_resolve_latency_seconds. Nothing is registered in a global
// Prometheus registry; callers mount the Handler where they want it.
package prometheus
