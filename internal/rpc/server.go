// Package rpc serves the standard gRPC health protocol next to the HTTP API.
package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"ai-companion/backend/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Server wraps a grpc.Server exposing grpc.health.v1.Health and reflection
type Server struct {
	grpc        *grpc.Server
	health      *health.Server
	serviceName string
	log         *logger.Logger
}

// NewServer creates the server. serviceName is reported alongside the
// overall ("") status.
func NewServer(serviceName string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.GetGlobal()
	}

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(log)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	s := &Server{grpc: gs, health: hs, serviceName: serviceName, log: log}
	s.SetServing(false)
	return s
}

// SetServing mirrors the HTTP health verdict
func (s *Server) SetServing(healthy bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	if s.serviceName != "" {
		s.health.SetServingStatus(s.serviceName, st)
	}
}

// Serve accepts connections on lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr (":9091") and serves
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Stop drains in-flight calls, forcing the stop once ctx is done
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func loggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("gRPC call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency", time.Since(start).String(),
		)
		return resp, err
	}
}
