// Package port abstracts the serial link to the pump.
//
// A Port is an io.ReadWriteCloser whose reads return ErrTimeout when no data
// arrived within the poll interval, so read loops can check for shutdown
// without blocking forever. OpenSerial builds an Opener backed by
// github.com/goburrow/serial.
package port
