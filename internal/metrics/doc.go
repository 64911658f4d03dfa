// Package metrics exposes pump diagnostics as Prometheus collectors on a
// dedicated registry.
package metrics
