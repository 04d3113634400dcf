// Package grpc exposes the standard gRPC health service so orchestrators can
// probe the chat engine without going through HTTP.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"crisis-chat/backend/pkg/logger"
)

// ServiceName is the health service name reported for the chat engine
const ServiceName = "crisis.chat.v1.ChatEngine"

// HealthSource reports whether every critical component is up
type HealthSource interface {
	IsSystemHealthy() bool
}

// Server wraps a gRPC server carrying the health service
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	source HealthSource
	period time.Duration
	log    *logger.Logger
}

// NewServer creates the gRPC server. period controls how often the health
// status is refreshed from source.
func NewServer(source HealthSource, period time.Duration, log *logger.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		source: source,
		period: period,
		log:    log,
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))

	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.sync()
	return s
}

// Serve accepts connections on lis and refreshes health until ctx is cancelled
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go s.watch(ctx)

	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service as not serving and stops the server gracefully
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) watch(ctx context.Context) {
	if s.period <= 0 {
		return
	}
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync()
		}
	}
}

func (s *Server) sync() {
	st := healthpb.HealthCheckResponse_SERVING
	if s.source != nil && !s.source.IsSystemHealthy() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("gRPC request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"latency", time.Since(start).String(),
	)
	return resp, err
}
