package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"clean-user-service/cmd/api/di"
)

// Server runs the gRPC server, the Gin REST API and, optionally, the
// gRPC-Gateway side by side.
type Server struct {
	Logger  *zap.Logger
	GRPC    *grpc.Server
	Health  *health.Server
	Gin     *http.Server
	Gateway *http.Server // nil when GATEWAY_PORT is empty

	grpcAddr    string
	gatewayConn *grpc.ClientConn
	stopOnce    sync.Once
}

// New creates a new server instance
func New(c *di.Container) (*Server, error) {
	grpcServer, healthServer := SetupGRPC(c)
	s := &Server{
		Logger:   c.Logger,
		GRPC:     grpcServer,
		Health:   healthServer,
		Gin:      SetupGinServer(c, ":"+c.Config.App.HTTPPort),
		grpcAddr: ":" + c.Config.App.GRPCPort,
	}

	if port := c.Config.App.GatewayPort; port != "" {
		gw, conn, err := SetupHTTPGateway(s.grpcAddr, ":"+port, c.Logger)
		if err != nil {
			return nil, err
		}
		s.Gateway, s.gatewayConn = gw, conn
	}
	return s, nil
}

// Start listens on all ports and serves until one server fails or
// Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	var listeners []net.Listener
	listen := func(addr string) (net.Listener, error) {
		lis, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listeners = append(listeners, lis)
		return lis, nil
	}

	grpcLis, err := listen(s.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := listen(s.Gin.Addr)
	if err != nil {
		return err
	}
	var gatewayLis net.Listener
	if s.Gateway != nil {
		if gatewayLis, err = listen(s.Gateway.Addr); err != nil {
			return err
		}
	}

	return s.Serve(grpcLis, httpLis, gatewayLis)
}

// Serve runs the servers on the given listeners. gatewayLis is ignored when
// the gateway is disabled. When any server fails the others are stopped so
// that Serve returns.
func (s *Server) Serve(grpcLis, httpLis, gatewayLis net.Listener) error {
	var g errgroup.Group

	g.Go(func() error {
		s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
		if err := s.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.stopAll()
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Logger.Info("Gin REST API running", zap.String("address", httpLis.Addr().String()))
		if err := s.Gin.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.stopAll()
			return fmt.Errorf("gin server: %w", err)
		}
		return nil
	})

	if s.Gateway != nil && gatewayLis != nil {
		g.Go(func() error {
			s.Logger.Info("REST gateway running", zap.String("address", gatewayLis.Addr().String()))
			if err := s.Gateway.Serve(gatewayLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.stopAll()
				return fmt.Errorf("gateway server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Shutdown stops accepting new work and waits for in-flight requests until
// ctx expires, after which the gRPC server is stopped forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Health.Shutdown()

	var errs []error
	if err := s.Gin.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gin shutdown: %w", err))
	}
	// The gateway drains before gRPC stops, since its requests are gRPC calls
	if s.Gateway != nil {
		if err := s.Gateway.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("gateway shutdown: %w", err))
		}
	}
	if s.gatewayConn != nil {
		if err := s.gatewayConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gateway client close: %w", err))
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.GRPC.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.Logger.Warn("gRPC graceful stop timed out, forcing stop")
		s.GRPC.Stop()
		errs = append(errs, fmt.Errorf("gRPC shutdown: %w", ctx.Err()))
	}

	return errors.Join(errs...)
}

func (s *Server) stopAll() {
	s.stopOnce.Do(func() {
		s.GRPC.Stop()
		_ = s.Gin.Close()
		if s.Gateway != nil {
			_ = s.Gateway.Close()
		}
	})
}
