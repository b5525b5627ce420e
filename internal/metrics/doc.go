// Package metrics records link checking metrics with Prometheus.
//
// A Recorder is attached to the link graph as a fetch observer and fed
// every finished run. The collected values can be written in the
// Prometheus text format for the node exporter textfile collector.
package metrics
