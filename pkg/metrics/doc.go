// Package metrics tracks per-channel delivery counters with rates derived on
// read. The persisted snapshot is the source of truth; a Prometheus counter
// vector mirrors increments for operational dashboards.
package metrics
