package health

import (
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// ServiceName is the health service name of the pump link.
const ServiceName = "pump.Monitor"

// Server reports pump connectivity through the gRPC health protocol.
// It implements sink.Sink.
type Server struct {
	// health is the standard health implementation.
	health *health.Server
	// mu protects status.
	mu sync.Mutex
	// status is the last reported status of ServiceName.
	status healthpb.HealthCheckResponse_ServingStatus
}

// NewServer creates a health server; the pump service starts NOT_SERVING.
func NewServer() *Server {
	s := &Server{
		health: health.NewServer(),
		status: healthpb.HealthCheckResponse_NOT_SERVING,
	}

	s.health.SetServingStatus(ServiceName, s.status)

	return s
}

// Register attaches the health service to a gRPC server.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(registrar, s.health)
}

// Publish implements sink.Sink.
func (s *Server) Publish(snap pump.Snapshot) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if snap.Connection.IsConnected() {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if status == s.status {
		return
	}

	s.status = status
	s.health.SetServingStatus(ServiceName, status)
}

// Shutdown reports every service as NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}
