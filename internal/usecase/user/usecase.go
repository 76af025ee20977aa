package user

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "clean-user-service/internal/domain/user"
	apperrors "clean-user-service/pkg/errors"
	"clean-user-service/pkg/logger"
	"clean-user-service/pkg/security"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// Interactor implements Usecase on top of a Repository.
// It provides a clean separation between the transport layer and data layer.
type Interactor struct {
	repo     Repository          // Repository for data access
	metrics  Metrics             // Optional business metrics
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

var _ Usecase = (*Interactor)(nil)

// New creates a new Interactor. m may be nil.
func New(r Repository, m Metrics, log *zap.Logger) *Interactor {
	return &Interactor{repo: r, metrics: m, log: log, validate: validator.New()}
}

// formatValidationError converts validator.ValidationErrors into a ValidationError.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.NewValidationError("", err.Error())
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}

	field := ""
	if len(validationErrors) == 1 {
		field = strings.ToLower(validationErrors[0].Field())
	}
	return apperrors.NewValidationError(field, strings.Join(messages, ", "))
}

// repoError keeps typed application errors and hides everything else behind an InternalError.
func repoError(message string, err error) error {
	var hs apperrors.HTTPStatuser
	if errors.As(err, &hs) {
		return err
	}
	return apperrors.NewInternalError(message, err)
}

// CreateUser validates the request, rejects emails without "@" and
// delegates persistence to the repository.
func (uc *Interactor) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	u, err := domain.NewUser(in.Name, in.Email)
	if err != nil {
		log.Warn("invalid email", zap.String("email", in.Email))
		return nil, apperrors.WrapValidationError("email", err)
	}

	existingUser, err := uc.repo.FindByEmail(ctx, u.Email)
	if err != nil {
		log.Error("failed to check existing email", zap.String("email", u.Email), zap.Error(err))
		return nil, repoError("failed to validate email uniqueness", err)
	}
	if existingUser != nil {
		log.Warn("email already exists", zap.String("email", u.Email))
		return nil, apperrors.NewAlreadyExistsError("user", "email already exists")
	}

	id, err := uc.repo.Save(ctx, u)
	if err != nil {
		log.Error("failed to create user", zap.Error(err))
		return nil, repoError("failed to create user", err)
	}
	u.ID = id

	if uc.metrics != nil {
		uc.metrics.IncUsersCreated()
	}

	log.Info("user created", zap.Int64("id", id))
	return &CreateUserResponse{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// UpdateUser applies the non-empty fields of the request to an existing user.
// A new email must contain "@" and must not belong to another user.
func (uc *Interactor) UpdateUser(ctx context.Context, in UpdateUserRequest) (*UpdateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.Int64("id", in.ID), zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	if in.Email != "" && !domain.IsValidEmail(in.Email) {
		log.Warn("invalid email", zap.String("email", in.Email))
		return nil, apperrors.WrapValidationError("email", domain.ErrInvalidEmail)
	}

	current, err := uc.repo.FindByID(ctx, in.ID)
	if err != nil {
		log.Warn("failed to load user for update", zap.Int64("id", in.ID), zap.Error(err))
		return nil, repoError("failed to load user", err)
	}

	if in.Email != "" && in.Email != current.Email {
		existingUser, err := uc.repo.FindByEmail(ctx, in.Email)
		if err != nil {
			log.Error("failed to check existing email", zap.String("email", in.Email), zap.Error(err))
			return nil, repoError("failed to validate email uniqueness", err)
		}
		if existingUser != nil && existingUser.ID != in.ID {
			log.Warn("email already exists", zap.String("email", in.Email), zap.Int64("existing_id", existingUser.ID))
			return nil, apperrors.NewAlreadyExistsError("user", "email already exists")
		}
		current.Email = in.Email
	}
	if in.Name != "" {
		current.Name = in.Name
	}

	if _, err := uc.repo.Update(ctx, current); err != nil {
		log.Error("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, repoError("failed to update user", err)
	}

	return &UpdateUserResponse{ID: current.ID, Name: current.Name, Email: current.Email}, nil
}

// DeleteUser deletes a user after validating the user ID.
func (uc *Interactor) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", in.ID))

	if in.ID <= 0 {
		log.Warn("delete user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, apperrors.NewValidationError("id", "invalid user id")
	}

	id, err := uc.repo.Delete(ctx, in.ID)
	if err != nil {
		log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, repoError("failed to delete user", err)
	}

	return &DeleteUserResponse{ID: id}, nil
}

// GetUser retrieves a user by ID after validating the request.
func (uc *Interactor) GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.ID <= 0 {
		log.Warn("get user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, apperrors.NewValidationError("id", "invalid user id")
	}

	u, err := uc.repo.FindByID(ctx, in.ID)
	if err != nil {
		log.Warn("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, repoError("failed to get user", err)
	}

	return &GetUserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}, nil
}

// ListUsers retrieves a paginated list of users with optional search functionality.
func (uc *Interactor) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.Page <= 0 {
		in.Page = defaultPage
	}
	if in.Limit <= 0 {
		in.Limit = defaultLimit
	}
	if in.Limit > maxLimit {
		in.Limit = maxLimit
	}
	// The row offset (page-1)*limit must fit in an int64
	if in.Page-1 > math.MaxInt64/in.Limit {
		log.Warn("page out of range", zap.Int64("page", in.Page), zap.Int64("limit", in.Limit))
		return nil, apperrors.NewValidationError("page", "page is out of range")
	}

	query, err := security.ValidateSearchQuery(in.Query)
	if err != nil {
		log.Warn("invalid search query", zap.String("query", in.Query), zap.Error(err))
		return nil, apperrors.NewValidationError("query", "invalid search query: "+err.Error())
	}

	log.Info("listing users", zap.String("query", query), zap.Int64("page", in.Page), zap.Int64("limit", in.Limit))

	domainUsers, total, err := uc.repo.List(ctx, query, in.Page, in.Limit)
	if err != nil {
		log.Error("failed to list users", zap.String("query", query), zap.Int64("page", in.Page), zap.Int64("limit", in.Limit), zap.Error(err))
		return nil, repoError("failed to list users", err)
	}

	users := make([]User, len(domainUsers))
	for i, du := range domainUsers {
		users[i] = User{
			ID:    du.ID,
			Name:  du.Name,
			Email: du.Email,
		}
	}

	p := domain.NewPagination(total, in.Page, in.Limit)
	return &ListUsersResponse{
		Users: users,
		Pagination: &Pagination{
			Total:      p.Total,
			Page:       p.Page,
			Limit:      p.Limit,
			TotalPages: p.TotalPages,
		},
	}, nil
}
