// Package alarm arbitrates between concurrently true alarm conditions.
//
// Evaluate is pure and picks the single highest-priority alarm from a
// snapshot. Arbiter adds the effects: it starts a repeating audible cue for
// the active alarm, stops it exactly once, and tracks silence so that a
// silenced alarm stays quiet until a different alarm becomes active or the
// same condition clears and is asserted again.
package alarm
