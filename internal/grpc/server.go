package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"coinboard/internal/config"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// MarketDataService is the health service name reported for upstream market data
const MarketDataService = "coinboard.MarketData"

type Server struct {
	config     *config.Config
	health     *health.Server
	logger     *logrus.Logger
	grpcServer *grpc.Server
	startTime  time.Time
}

func NewServer(cfg *config.Config, logger *logrus.Logger) *Server {
	s := &Server{
		config:    cfg,
		health:    health.NewServer(),
		logger:    logger,
		startTime: time.Now(),
	}

	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(s.unaryInterceptor),
		grpc.StreamInterceptor(s.streamInterceptor),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	// Unknown until the first upstream attempt lands.
	s.health.SetServingStatus(MarketDataService, healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Start listens on the configured port and serves until Stop
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Infof("gRPC server listening on :%d", s.config.Server.GRPCPort)

	return s.Serve(lis)
}

// Serve accepts connections on lis
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.logger.WithField("uptime_seconds", s.Uptime()).Info("Stopping gRPC server...")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Interceptors for logging
func (s *Server) unaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	s.logger.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"duration": time.Since(start).Milliseconds(),
		"error":    err != nil,
	}).Debug("gRPC unary call")

	return resp, err
}

func (s *Server) streamInterceptor(
	srv interface{},
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	start := time.Now()

	err := handler(srv, ss)

	s.logger.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"duration": time.Since(start).Milliseconds(),
		"error":    err != nil,
	}).Debug("gRPC stream call")

	return err
}
