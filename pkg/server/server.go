// Package server exposes the ContextGuard pipeline over gRPC.
package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Tributary-ai-services/ContextGuard/middleware"
	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/pipeline"
)

// Server encapsulates the gRPC server setup and lifecycle management.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	service    *Service
}

// New builds a server with the Guard and health services registered and the
// logging and rate limit interceptors installed.
func New(proc pipeline.Processor, cfg config.GRPCServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mw := middleware.GRPCConfigFromSettings(cfg)

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.LoggingInterceptor(logger, mw),
			middleware.RateLimitInterceptor(mw),
		),
		grpc.ChainStreamInterceptor(middleware.StreamRateLimitInterceptor(mw)),
	}
	if cfg.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize))
	}
	if cfg.MaxSendMsgSize > 0 {
		opts = append(opts, grpc.MaxSendMsgSize(cfg.MaxSendMsgSize))
	}

	grpcServer := grpc.NewServer(opts...)
	service := NewService(proc)
	RegisterGuardServer(grpcServer, service)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpcServer: grpcServer, health: hs, service: service}
}

// Serve starts the gRPC server on the provided listener, blocking until
// the server stops or encounters an error.
func (s *Server) Serve(lis net.Listener) error { return s.grpcServer.Serve(lis) }

// GracefulStop marks the server as not serving and waits for in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Stop closes all connections immediately.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.Stop()
}
