// Package grpc serves the standard gRPC health protocol for the backend.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"chat-backend/internal/observability"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer reports SERVING while the store answers pings.
type HealthServer struct {
	srv      *grpclib.Server
	health   *health.Server
	pinger   Pinger
	service  string
	interval time.Duration
}

// NewHealthServer builds the gRPC server. service is the name clients may
// pass to Check in addition to the empty overall name.
func NewHealthServer(pinger Pinger, service string) *HealthServer {
	srv := grpclib.NewServer(
		grpclib.StatsHandler(otelgrpc.NewServerHandler()),
		grpclib.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		srv:      srv,
		health:   hs,
		pinger:   pinger,
		service:  service,
		interval: 15 * time.Second,
	}
}

// Serve blocks until the listener fails or the server stops.
func (s *HealthServer) Serve(lis net.Listener) error {
	log.Info("grpc health listening", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

// Watch pings the store until ctx ends.
func (s *HealthServer) Watch(ctx context.Context) {
	s.check(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *HealthServer) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(ctx); err != nil {
		log.Warn("store ping failed", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

// Stop marks every service NOT_SERVING and drains open calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
