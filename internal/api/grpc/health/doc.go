// Package health implements the gRPC liveness surface of the monitor.
//
// It serves the standard grpc.health.v1 service and reports the pump service
// as SERVING while the serial link is connected.
package health
