// Package gateway exposes the gRPC user service as JSON over HTTP under /v1
// using the gRPC-Gateway runtime. Requests are translated into
// google.protobuf.Struct messages and forwarded over a client connection, so
// every call passes the same gRPC interceptors as native clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	grpcadapter "clean-user-service/internal/adapter/grpc"
	"clean-user-service/pkg/logger"
)

type rpcFunc func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

type requestBuilder func(inbound runtime.Marshaler, r *http.Request, params map[string]string) (*structpb.Struct, error)

type route struct {
	method  string
	pattern string
	rpc     string
	build   requestBuilder
	call    rpcFunc
}

// NewHandler returns a ServeMux routing the /v1/users REST surface to client.
func NewHandler(client *grpcadapter.UserServiceClient) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(
		runtime.WithIncomingHeaderMatcher(headerMatcher),
		runtime.WithForwardResponseOption(createdStatus),
	)

	routes := []route{
		{http.MethodPost, "/v1/users", grpcadapter.CreateUserMethod, fromBody, client.CreateUser},
		{http.MethodGet, "/v1/users", grpcadapter.ListUsersMethod, fromQuery, client.ListUsers},
		{http.MethodGet, "/v1/users/{id}", grpcadapter.GetUserMethod, fromPath, client.GetUser},
		{http.MethodPut, "/v1/users/{id}", grpcadapter.UpdateUserMethod, fromBodyAndPath, client.UpdateUser},
		{http.MethodDelete, "/v1/users/{id}", grpcadapter.DeleteUserMethod, fromPath, client.DeleteUser},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, handle(mux, rt)); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return mux, nil
}

func handle(mux *runtime.ServeMux, rt route) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		inbound, outbound := runtime.MarshalerForRequest(mux, r)
		ctx, err := runtime.AnnotateContext(ctx, mux, r, rt.rpc, runtime.WithHTTPPathPattern(rt.pattern))
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}

		in, err := rt.build(inbound, r, params)
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}

		var md runtime.ServerMetadata
		resp, err := rt.call(ctx, in, grpc.Header(&md.HeaderMD), grpc.Trailer(&md.TrailerMD))
		ctx = runtime.NewServerMetadataContext(ctx, md)
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}

		runtime.ForwardResponseMessage(ctx, mux, outbound, w, r, resp)
	}
}

// headerMatcher forwards the request ID alongside the default permanent headers.
func headerMatcher(key string) (string, bool) {
	if strings.EqualFold(key, logger.RequestIDHeader) {
		return strings.ToLower(logger.RequestIDHeader), true
	}
	return runtime.DefaultHeaderMatcher(key)
}

// createdStatus answers a successful CreateUser with 201 and the new resource's location.
func createdStatus(ctx context.Context, w http.ResponseWriter, m proto.Message) error {
	method, ok := runtime.RPCMethod(ctx)
	if !ok || method != grpcadapter.CreateUserMethod {
		return nil
	}
	if s, ok := m.(*structpb.Struct); ok {
		if id, ok := s.GetFields()["id"]; ok {
			w.Header().Set("Location", fmt.Sprintf("/v1/users/%d", int64(id.GetNumberValue())))
		}
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func fromBody(inbound runtime.Marshaler, r *http.Request, _ map[string]string) (*structpb.Struct, error) {
	in := &structpb.Struct{}
	if err := inbound.NewDecoder(r.Body).Decode(in); err != nil && !errors.Is(err, io.EOF) {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
	}
	if in.Fields == nil {
		in.Fields = map[string]*structpb.Value{}
	}
	return in, nil
}

func fromPath(_ runtime.Marshaler, _ *http.Request, params map[string]string) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if err := setID(in, params); err != nil {
		return nil, err
	}
	return in, nil
}

func fromBodyAndPath(inbound runtime.Marshaler, r *http.Request, params map[string]string) (*structpb.Struct, error) {
	in, err := fromBody(inbound, r, params)
	if err != nil {
		return nil, err
	}
	// The path wins over any id in the body
	if err := setID(in, params); err != nil {
		return nil, err
	}
	return in, nil
}

func fromQuery(_ runtime.Marshaler, r *http.Request, _ map[string]string) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	q := r.URL.Query()
	for _, name := range []string{"page", "limit"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := runtime.Int64(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "type mismatch, parameter: %s", name)
		}
		in.Fields[name] = structpb.NewNumberValue(float64(n))
	}
	if query := q.Get("query"); query != "" {
		in.Fields["query"] = structpb.NewStringValue(query)
	}
	return in, nil
}

func setID(in *structpb.Struct, params map[string]string) error {
	raw, ok := params["id"]
	if !ok {
		return status.Error(codes.InvalidArgument, "missing parameter id")
	}
	id, err := runtime.Int64(raw)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "type mismatch, parameter: id, error: %v", err)
	}
	in.Fields["id"] = structpb.NewNumberValue(float64(id))
	return nil
}
