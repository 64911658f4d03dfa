package health

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// dial starts s on an in-memory listener and returns a health client.
func dial(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()

	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer()
	s.Register(srv)

	go func() {
		_ = srv.Serve(lis) //nolint:errcheck // Stopped by cleanup.
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	return healthpb.NewHealthClient(conn)
}

// TestServer_FollowsConnection reports SERVING only while connected.
func TestServer_FollowsConnection(t *testing.T) {
	t.Parallel()

	s := NewServer()
	client := dial(t, s)
	ctx := context.Background()
	req := &healthpb.HealthCheckRequest{Service: ServiceName}

	resp, err := client.Check(ctx, req)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	s.Publish(pump.Snapshot{Connection: pump.Connection{Status: pump.Connected, PortID: "COM3"}})

	resp, err = client.Check(ctx, req)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	s.Publish(pump.Snapshot{Connection: pump.Connection{Status: pump.Disconnected}})

	resp, err = client.Check(ctx, req)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	// The process itself is always reported.
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

// TestServer_Shutdown stops reporting SERVING.
func TestServer_Shutdown(t *testing.T) {
	t.Parallel()

	s := NewServer()
	s.Publish(pump.Snapshot{Connection: pump.Connection{Status: pump.Connected}})
	s.Shutdown()

	// Updates after shutdown are ignored.
	s.Publish(pump.Snapshot{Connection: pump.Connection{Status: pump.Connected, PortID: "COM4"}})

	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
