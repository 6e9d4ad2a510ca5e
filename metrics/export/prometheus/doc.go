// Package prometheus renders engine metrics in Prometheus text format.
//
// [NewExporter] accepts an [authgate.Engine] and exposes an [Exporter.Handler]
// that renders all counters and histograms in text exposition format. Counter
// names are prefixed authgate_*_total; the single histogram is
// authgate_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
