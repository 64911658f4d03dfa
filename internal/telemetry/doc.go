// Package telemetry turns raw pump telemetry lines into domain events.
//
// Parse never fails: lines that match no known format become pump.Malformed
// and unparsable numeric fields become invalid readings.
package telemetry
