// Package battery persists the last known battery level.
//
// The FileRepository stores and loads the level as JSON on disk so a restart
// does not refill the simulated battery, and the battery reset command has a
// place to write to.
package battery
