// Package session owns the serial link to the pump.
//
// A Session connects to the first candidate port that opens, runs a read
// loop that parses telemetry into the device state, sends operator commands
// and drives the battery and refresh timers. Every state mutation, alarm
// arbitration and publication happens under a single dispatch mutex, so
// sinks observe snapshots in the order they were produced.
package session
