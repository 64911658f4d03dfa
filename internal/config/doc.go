// Package config defines the monitor settings and provides helpers to load,
// validate and save them in YAML format.
//
// A missing settings file is not an error: Load returns Default so the
// monitor runs out of the box against the usual serial port names.
package config
