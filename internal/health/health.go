// Package health serves the standard gRPC health protocol for the engine.
package health

import (
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name under which the pipeline reports its state.
const Service = "nids.Pipeline"

// Server reports SERVING while the pipeline loop runs.
type Server struct {
	grpcServer *grpc.Server
	hs         *health.Server
	lis        net.Listener
}

// Listen binds addr. The pipeline starts out NOT_SERVING.
func Listen(addr string) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpcServer: gs, hs: hs, lis: lis}
	s.SetServing(false)
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve blocks until Stop is called.
func (s *Server) Serve() error {
	log.Printf("gRPC health service listening on %s", s.lis.Addr())
	if err := s.grpcServer.Serve(s.lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// SetServing updates both the overall and the pipeline status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.hs.SetServingStatus("", status)
	s.hs.SetServingStatus(Service, status)
}

// Stop marks everything NOT_SERVING and stops the server.
func (s *Server) Stop() {
	s.hs.Shutdown()
	s.grpcServer.GracefulStop()
}
