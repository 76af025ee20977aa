package middleware

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"clean-user-service/internal/adapter/ratelimit"
	"clean-user-service/pkg/logger"
)

// RateLimiter guards unary gRPC methods with a per-client limiter.
type RateLimiter struct {
	limiter ratelimit.Limiter
	log     *zap.Logger
	trusted []netip.Prefix
}

// NewRateLimiter creates a new rate limiter interceptor. Forwarding metadata
// is only honoured when the peer falls inside one of trusted.
func NewRateLimiter(limiter ratelimit.Limiter, log *zap.Logger, trusted ...netip.Prefix) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		log:     log,
		trusted: trusted,
	}
}

// UnaryInterceptor returns a gRPC unary interceptor for rate limiting.
// Limiter errors let the call through.
func (rl *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		clientIP := clientIP(ctx, rl.trusted)
		key := info.FullMethod + ":" + clientIP

		allowed, err := rl.limiter.Allow(ctx, key)
		if err != nil {
			logger.WithContext(ctx, rl.log).Warn("rate limiter error, allowing request",
				zap.String("client_ip", clientIP),
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
			return handler(ctx, req)
		}

		if !allowed {
			logger.WithContext(ctx, rl.log).Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("method", info.FullMethod),
			)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}

// clientIP resolves the caller's address. The peer is the client unless it
// is a trusted proxy, in which case x-forwarded-for is walked from the
// nearest hop back to the first untrusted address, then x-real-ip is tried.
func clientIP(ctx context.Context, trusted []netip.Prefix) string {
	remote := peerHost(ctx)
	if remote == "" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(remote)
	if err != nil || !isTrusted(addr, trusted) {
		return remote
	}

	md, _ := metadata.FromIncomingContext(ctx)
	if ip := forwardedClient(md.Get("x-forwarded-for"), trusted); ip != "" {
		return ip
	}
	if xri := md.Get("x-real-ip"); len(xri) > 0 {
		if a, err := netip.ParseAddr(strings.TrimSpace(xri[0])); err == nil {
			return a.Unmap().String()
		}
	}
	return remote
}

func forwardedClient(values []string, trusted []netip.Prefix) string {
	hops := strings.Split(strings.Join(values, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return ""
		}
		addr = addr.Unmap()
		if !isTrusted(addr, trusted) {
			return addr.String()
		}
	}
	return ""
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
