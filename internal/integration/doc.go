// Package integration runs the whole pump monitor against an in-memory
// serial port and talks to it over its real HTTP and gRPC listeners.
package integration
