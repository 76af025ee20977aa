package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"clean-user-service/cmd/api/di"
	grpcadapter "clean-user-service/internal/adapter/grpc"
	"clean-user-service/internal/adapter/grpc/middleware"
)

// SetupGRPC creates the gRPC server with the user service and the standard
// health service registered.
func SetupGRPC(c *di.Container) (*grpc.Server, *health.Server) {
	var rl *middleware.RateLimiter
	if c.GRPCLimiter != nil {
		// Validate has already rejected malformed entries
		trusted, _ := c.Config.App.TrustedProxyPrefixes()
		rl = middleware.NewRateLimiter(c.GRPCLimiter, c.Logger, trusted...)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(middleware.UnaryChain(c.Logger, c.Metrics, rl)...))
	grpcadapter.RegisterUserServiceServer(grpcServer, c.GRPCService)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcadapter.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return grpcServer, healthServer
}
