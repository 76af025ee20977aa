package user

import (
	"context"

	domain "clean-user-service/internal/domain/user"
)

// Usecase defines the interface for user business logic operations.
type Usecase interface {
	CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error)
	UpdateUser(ctx context.Context, in UpdateUserRequest) (*UpdateUserResponse, error)
	DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error)
	GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error)
	ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error)
}

// Repository defines the interface for user data access operations.
// It is owned by the use-case layer and implemented by adapters
// (e.g., PostgreSQL, a cached decorator).
type Repository interface {
	Save(ctx context.Context, u *domain.User) (int64, error)                                 // Persist a new user
	FindByID(ctx context.Context, id int64) (*domain.User, error)                            // Retrieve user by ID
	FindByEmail(ctx context.Context, email string) (*domain.User, error)                     // Retrieve user by email, nil if absent
	Update(ctx context.Context, u *domain.User) (int64, error)                               // Update existing user
	Delete(ctx context.Context, id int64) (int64, error)                                     // Delete user by ID
	List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) // List users and total count
}

// Metrics receives business events from the use case.
type Metrics interface {
	IncUsersCreated()
}
