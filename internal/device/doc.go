// Package device holds the authoritative infusion pump state machine.
//
// State is mutated only through Apply (telemetry events) and the command,
// connection and battery methods; each call is atomic and returns a fresh
// pump.Snapshot. Blood leakage and occlusion are latches that only an
// operator-issued automatic mode command clears.
package device
