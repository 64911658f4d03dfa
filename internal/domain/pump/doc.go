// Package pump contains the core domain types of the infusion pump monitor.
//
// It defines the telemetry events produced by the line parser, validated
// readings, operating modes, connection states, alarm kinds with their fixed
// priority order, outbound commands and the immutable display snapshot that
// presentation sinks consume.
package pump
