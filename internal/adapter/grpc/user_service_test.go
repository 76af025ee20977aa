package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	domain "clean-user-service/internal/domain/user"
	"clean-user-service/internal/usecase/user"
	apperrors "clean-user-service/pkg/errors"
	"clean-user-service/pkg/logger"
)

type mockUsecase struct {
	mock.Mock
}

func (m *mockUsecase) CreateUser(ctx context.Context, in user.CreateUserRequest) (*user.CreateUserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.CreateUserResponse), args.Error(1)
}

func (m *mockUsecase) UpdateUser(ctx context.Context, in user.UpdateUserRequest) (*user.UpdateUserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.UpdateUserResponse), args.Error(1)
}

func (m *mockUsecase) DeleteUser(ctx context.Context, in user.DeleteUserRequest) (*user.DeleteUserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.DeleteUserResponse), args.Error(1)
}

func (m *mockUsecase) GetUser(ctx context.Context, in user.GetUserRequest) (*user.GetUserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.GetUserResponse), args.Error(1)
}

func (m *mockUsecase) ListUsers(ctx context.Context, in user.ListUsersRequest) (*user.ListUsersResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.ListUsersResponse), args.Error(1)
}

type UserServiceSuite struct {
	suite.Suite
	uc     *mockUsecase
	client *UserServiceClient
	conn   *grpc.ClientConn
	server *grpc.Server
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	s.uc = new(mockUsecase)
	lis := bufconn.Listen(1 << 20)

	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(logger.RequestIDInterceptor()))
	RegisterUserServiceServer(s.server, NewUserService(s.uc, zaptest.NewLogger(s.T())))
	go func() { _ = s.server.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.conn = conn
	s.client = NewUserServiceClient(conn)
}

func (s *UserServiceSuite) TearDownTest() {
	_ = s.conn.Close()
	s.server.Stop()
	s.uc.AssertExpectations(s.T())
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return st
}

func (s *UserServiceSuite) TestCreateUser() {
	s.uc.On("CreateUser", mock.Anything, user.CreateUserRequest{Name: "Ada", Email: "ada@example.com"}).
		Return(&user.CreateUserResponse{ID: 7, Name: "Ada", Email: "ada@example.com"}, nil)

	out, err := s.client.CreateUser(context.Background(), mustStruct(s.T(), map[string]any{
		"name":  "Ada",
		"email": "ada@example.com",
	}))

	s.Require().NoError(err)
	s.Equal(map[string]any{"id": float64(7), "name": "Ada", "email": "ada@example.com"}, out.AsMap())
}

func (s *UserServiceSuite) TestCreateUser_InvalidEmail() {
	s.uc.On("CreateUser", mock.Anything, user.CreateUserRequest{Name: "Ada", Email: "ada"}).
		Return(nil, apperrors.WrapValidationError("email", domain.ErrInvalidEmail))

	_, err := s.client.CreateUser(context.Background(), mustStruct(s.T(), map[string]any{
		"name":  "Ada",
		"email": "ada",
	}))

	s.Equal(codes.InvalidArgument, status.Code(err))
	s.Contains(status.Convert(err).Message(), "invalid email format")
}

func (s *UserServiceSuite) TestCreateUser_WrongFieldType() {
	_, err := s.client.CreateUser(context.Background(), mustStruct(s.T(), map[string]any{
		"name":  "Ada",
		"email": 42,
	}))

	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *UserServiceSuite) TestGetUser() {
	s.uc.On("GetUser", mock.Anything, user.GetUserRequest{ID: 3}).
		Return(&user.GetUserResponse{ID: 3, Name: "Bob", Email: "bob@example.com"}, nil)

	out, err := s.client.GetUser(context.Background(), mustStruct(s.T(), map[string]any{"id": 3}))

	s.Require().NoError(err)
	s.Equal("Bob", out.GetFields()["name"].GetStringValue())
}

func (s *UserServiceSuite) TestGetUser_Errors() {
	s.uc.On("GetUser", mock.Anything, user.GetUserRequest{ID: 404}).
		Return(nil, apperrors.NewNotFoundError("user", "user not found: id=404"))
	s.uc.On("GetUser", mock.Anything, user.GetUserRequest{ID: 500}).
		Return(nil, apperrors.NewInternalError("failed to get user", errors.New("dial tcp: refused")))

	_, err := s.client.GetUser(context.Background(), mustStruct(s.T(), map[string]any{"id": 404}))
	s.Equal(codes.NotFound, status.Code(err))

	_, err = s.client.GetUser(context.Background(), mustStruct(s.T(), map[string]any{"id": 500}))
	s.Equal(codes.Internal, status.Code(err))
	s.NotContains(status.Convert(err).Message(), "dial tcp")

	_, err = s.client.GetUser(context.Background(), mustStruct(s.T(), map[string]any{"id": 1.5}))
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *UserServiceSuite) TestUpdateUser_AlreadyExists() {
	s.uc.On("UpdateUser", mock.Anything, user.UpdateUserRequest{ID: 1, Email: "taken@example.com"}).
		Return(nil, apperrors.NewAlreadyExistsError("user", "email already exists"))

	_, err := s.client.UpdateUser(context.Background(), mustStruct(s.T(), map[string]any{
		"id":    1,
		"email": "taken@example.com",
	}))

	s.Equal(codes.AlreadyExists, status.Code(err))
}

func (s *UserServiceSuite) TestDeleteUser() {
	s.uc.On("DeleteUser", mock.Anything, user.DeleteUserRequest{ID: 2}).
		Return(&user.DeleteUserResponse{ID: 2}, nil)

	out, err := s.client.DeleteUser(context.Background(), mustStruct(s.T(), map[string]any{"id": 2}))

	s.Require().NoError(err)
	s.Equal(map[string]any{"id": float64(2)}, out.AsMap())
}

func (s *UserServiceSuite) TestListUsers() {
	s.uc.On("ListUsers", mock.Anything, user.ListUsersRequest{Query: "a", Page: 1, Limit: 2}).
		Return(&user.ListUsersResponse{
			Users:      []user.User{{ID: 1, Name: "Ada", Email: "ada@example.com"}},
			Pagination: &user.Pagination{Total: 1, Page: 1, Limit: 2, TotalPages: 1},
		}, nil)

	out, err := s.client.ListUsers(context.Background(), mustStruct(s.T(), map[string]any{
		"query": "a",
		"page":  1,
		"limit": 2,
	}))

	s.Require().NoError(err)
	got := out.AsMap()
	s.Len(got["users"], 1)
	s.Equal(map[string]any{
		"total":       float64(1),
		"page":        float64(1),
		"limit":       float64(2),
		"total_pages": float64(1),
	}, got["pagination"])
}
