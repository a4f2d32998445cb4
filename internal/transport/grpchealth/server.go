// Package grpchealth exposes the connection status through the standard
// grpc.health.v1.Health service.
package grpchealth

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/core/store"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "hivekit.Connection"

// Subscriber is the view of the store the server needs. *store.Store implements it.
type Subscriber interface {
	GetState() domain.ConnectionState
	Subscribe(fn store.Listener) func()
}

// Server reports SERVING while the store is connected and NOT_SERVING otherwise.
type Server struct {
	port   int
	grpc   *grpc.Server
	health *health.Server

	mu          sync.Mutex
	unsubscribe func()

	log *slog.Logger
}

// NewServer creates a server tracking source. Call Start or Serve to accept connections.
func NewServer(source Subscriber, port int) *Server {
	s := &Server{
		port:   port,
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    slog.Default().With("component", "grpc-health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.Update(source.GetState())
	s.unsubscribe = source.Subscribe(s.Update)
	return s
}

// Update sets the serving status from state.
func (s *Server) Update(state domain.ConnectionState) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state.IsConnected() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Start listens on the configured port and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop unsubscribes from the store, marks every service NOT_SERVING and
// stops the server gracefully.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	s.health.Shutdown()
	s.grpc.GracefulStop()
}
