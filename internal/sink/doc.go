// Package sink delivers display snapshots to presentation collaborators.
//
// A Sink receives immutable pump.Snapshot values. Queue decouples the core
// from slow sinks: publishing never blocks, and when a sink falls behind only
// the newest snapshot is kept, since every snapshot is a full projection.
package sink
