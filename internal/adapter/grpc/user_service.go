package grpc

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"clean-user-service/internal/usecase/user"
	apperrors "clean-user-service/pkg/errors"
	"clean-user-service/pkg/logger"
)

// UserService implements UserServiceServer on top of the user use case.
type UserService struct {
	uc  user.Usecase
	log *zap.Logger
}

var _ UserServiceServer = (*UserService)(nil)

// NewUserService creates a new gRPC user service
func NewUserService(uc user.Usecase, log *zap.Logger) *UserService {
	return &UserService{uc: uc, log: log}
}

// CreateUser expects {"name", "email"} and returns {"id", "name", "email"}.
func (s *UserService) CreateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name, err := stringField(in, "name")
	if err != nil {
		return nil, toStatus(err)
	}
	email, err := stringField(in, "email")
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.uc.CreateUser(ctx, user.CreateUserRequest{Name: name, Email: email})
	if err != nil {
		return nil, s.fail(ctx, "CreateUser", err)
	}
	return userStruct(resp.ID, resp.Name, resp.Email)
}

// GetUser expects {"id"}.
func (s *UserService) GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := int64Field(in, "id")
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.uc.GetUser(ctx, user.GetUserRequest{ID: id})
	if err != nil {
		return nil, s.fail(ctx, "GetUser", err)
	}
	return userStruct(resp.ID, resp.Name, resp.Email)
}

// UpdateUser expects {"id"} plus optional "name" and "email".
func (s *UserService) UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := int64Field(in, "id")
	if err != nil {
		return nil, toStatus(err)
	}
	name, err := stringField(in, "name")
	if err != nil {
		return nil, toStatus(err)
	}
	email, err := stringField(in, "email")
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.uc.UpdateUser(ctx, user.UpdateUserRequest{ID: id, Name: name, Email: email})
	if err != nil {
		return nil, s.fail(ctx, "UpdateUser", err)
	}
	return userStruct(resp.ID, resp.Name, resp.Email)
}

// DeleteUser expects {"id"} and returns {"id"}.
func (s *UserService) DeleteUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := int64Field(in, "id")
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.uc.DeleteUser(ctx, user.DeleteUserRequest{ID: id})
	if err != nil {
		return nil, s.fail(ctx, "DeleteUser", err)
	}
	return structpb.NewStruct(map[string]any{"id": resp.ID})
}

// ListUsers accepts optional "query", "page" and "limit" and returns
// {"users": [...], "pagination": {...}}.
func (s *UserService) ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	query, err := stringField(in, "query")
	if err != nil {
		return nil, toStatus(err)
	}
	page, err := int64Field(in, "page")
	if err != nil {
		return nil, toStatus(err)
	}
	limit, err := int64Field(in, "limit")
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.uc.ListUsers(ctx, user.ListUsersRequest{Query: query, Page: page, Limit: limit})
	if err != nil {
		return nil, s.fail(ctx, "ListUsers", err)
	}

	users := make([]any, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = map[string]any{"id": u.ID, "name": u.Name, "email": u.Email}
	}
	out := map[string]any{"users": users}
	if p := resp.Pagination; p != nil {
		out["pagination"] = map[string]any{
			"total":       p.Total,
			"page":        p.Page,
			"limit":       p.Limit,
			"total_pages": p.TotalPages,
		}
	}
	return structpb.NewStruct(out)
}

func (s *UserService) fail(ctx context.Context, method string, err error) error {
	st := apperrors.ToGRPCStatus(err)
	logger.WithContext(ctx, s.log).Debug("grpc call failed",
		zap.String("method", method),
		zap.String("code", st.Code().String()),
		zap.Error(err),
	)
	return st.Err()
}

func toStatus(err error) error {
	return apperrors.ToGRPCStatus(err).Err()
}

func userStruct(id int64, name, email string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":    id,
		"name":  name,
		"email": email,
	})
}

// stringField returns the string at key, or "" when the key is absent or null.
func stringField(in *structpb.Struct, key string) (string, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	default:
		return "", apperrors.NewValidationError(key, key+" must be a string")
	}
}

// int64Field returns the integral number at key, or 0 when absent or null.
// Struct numbers are doubles, so fractional or out-of-range values are rejected.
func int64Field(in *structpb.Struct, key string) (int64, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, apperrors.NewValidationError(key, fmt.Sprintf("%s must be an integer", key))
		}
		return int64(n), nil
	default:
		return 0, apperrors.NewValidationError(key, key+" must be a number")
	}
}
