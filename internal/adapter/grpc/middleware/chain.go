package middleware

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"clean-user-service/pkg/logger"
	"clean-user-service/pkg/metrics"
)

// UnaryChain returns the server interceptors, outermost first. Logging wraps
// Recovery so that a recovered panic is still logged and counted as Internal.
// rl may be nil.
func UnaryChain(log *zap.Logger, m *metrics.Metrics, rl *RateLimiter) []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{
		logger.RequestIDInterceptor(),
		LoggingInterceptor(log, m),
		RecoveryInterceptor(log),
	}
	if rl != nil {
		chain = append(chain, rl.UnaryInterceptor())
	}
	return chain
}
