package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"clean-user-service/internal/adapter/gateway"
	grpcadapter "clean-user-service/internal/adapter/grpc"
)

// SetupHTTPGateway creates the gRPC-Gateway server. It serves the /v1 REST
// surface by calling the gRPC server at grpcAddr. The returned connection
// must be closed after the server has shut down.
func SetupHTTPGateway(grpcAddr, httpAddr string, l *zap.Logger) (*http.Server, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(dialTarget(grpcAddr), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	mux, err := gateway.NewHandler(grpcadapter.NewUserServiceClient(conn))
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to register gateway: %w", err)
	}

	l.Info("REST gateway configured", zap.String("address", httpAddr), zap.String("upstream", grpcAddr))

	return &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, conn, nil
}

// dialTarget turns a listen address such as ":50051" into a dialable one.
func dialTarget(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
