// Package rest exposes the operator intents of the monitor over HTTP.
//
// The chi router serves the latest snapshot, Prometheus metrics and a health
// check, and accepts the commands an operator would otherwise issue from the
// pump console: silence, automatic mode, manual power, connect, disconnect,
// the power control hold flag and the battery reset.
package rest
