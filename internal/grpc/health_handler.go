package grpc

import (
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SetMarketDataServing records the outcome of the latest upstream attempt
func (s *Server) SetMarketDataServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(MarketDataService, status)
}

// Uptime returns the seconds since the server was created
func (s *Server) Uptime() int64 {
	return int64(time.Since(s.startTime).Seconds())
}
