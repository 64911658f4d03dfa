// Package monitor wires the pump monitor process together.
//
// Run loads the settings, restores the battery level, builds the device
// state, alarm arbiter and serial session, attaches every presentation sink
// (console, metrics, gRPC health, MQTT) and serves the HTTP control API until
// the context is canceled.
package monitor
