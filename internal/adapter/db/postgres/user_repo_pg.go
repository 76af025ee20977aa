package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clean-user-service/internal/domain/user"
	usecase "clean-user-service/internal/usecase/user"
	apperrors "clean-user-service/pkg/errors"
	"clean-user-service/pkg/logger"
	"clean-user-service/pkg/security"
)

const uniqueViolation = "23505"

// UserRepoPG implements usecase.Repository using PostgreSQL and GORM.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

var _ usecase.Repository = (*UserRepoPG)(nil)

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (m UserSchema) toDomain() *user.User {
	return &user.User{ID: m.ID, Name: m.Name, Email: m.Email}
}

// isUniqueViolation reports whether err is a unique constraint failure.
// SQLite does not return SQLSTATE codes, so its message is matched as well.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Save inserts a new user into the database and returns its id.
func (r *UserRepoPG) Save(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}
	log := logger.WithContext(ctx, r.log)

	model := UserSchema{
		Name:  u.Name,
		Email: u.Email,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			log.Warn("duplicate email on insert", zap.String("email", u.Email))
			return 0, apperrors.NewAlreadyExistsError("user", "email already exists")
		}
		log.Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info("user created in db", zap.Int64("id", model.ID))
	return model.ID, nil
}

// Update overwrites name and email of an existing user.
func (r *UserRepoPG) Update(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}
	log := logger.WithContext(ctx, r.log)

	res := r.db.WithContext(ctx).
		Model(&UserSchema{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"name":       u.Name,
			"email":      u.Email,
			"updated_at": time.Now().UTC(),
		})
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			log.Warn("duplicate email on update", zap.Int64("id", u.ID), zap.String("email", u.Email))
			return 0, apperrors.NewAlreadyExistsError("user", "email already exists")
		}
		log.Error("failed to update user in db", zap.Error(err), zap.Int64("id", u.ID))
		return 0, fmt.Errorf("failed to update user: %w", err)
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", u.ID))
	}

	log.Info("user updated in db", zap.Int64("id", u.ID))
	return u.ID, nil
}

// Delete removes a user from the database by ID.
func (r *UserRepoPG) Delete(ctx context.Context, id int64) (int64, error) {
	if id <= 0 {
		return 0, apperrors.NewValidationError("id", "invalid user id")
	}
	log := logger.WithContext(ctx, r.log)

	res := r.db.WithContext(ctx).Delete(&UserSchema{}, id)
	if err := res.Error; err != nil {
		log.Error("failed to delete user in db", zap.Error(err), zap.Int64("id", id))
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
	}

	log.Info("user deleted in db", zap.Int64("id", id))
	return id, nil
}

// FindByID retrieves a user by their unique ID.
func (r *UserRepoPG) FindByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
		}
		logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return model.toDomain(), nil
}

// FindByEmail retrieves a user by email address. It returns (nil, nil) when absent.
func (r *UserRepoPG) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithContext(ctx, r.log).Error("failed to get user by email from db", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return model.toDomain(), nil
}

// List returns one page of users whose name or email contains query,
// case-insensitively, together with the total number of matches.
func (r *UserRepoPG) List(ctx context.Context, query string, page, limit int64) ([]user.User, int64, error) {
	log := logger.WithContext(ctx, r.log)

	search, err := security.ValidateSearchQuery(query)
	if err != nil {
		log.Warn("rejected search query", zap.String("query", query), zap.Error(err))
		return nil, 0, apperrors.NewValidationError("query", "invalid search query: "+err.Error())
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if page-1 > math.MaxInt64/limit {
		return nil, 0, apperrors.NewValidationError("page", "page is out of range")
	}

	matching := func(db *gorm.DB) *gorm.DB {
		if search == "" {
			return db
		}
		pattern := "%" + strings.ToLower(security.EscapeLike(search)) + "%"
		return db.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Scopes(matching).Count(&total).Error; err != nil {
		log.Error("failed to count users", zap.Error(err), zap.String("query", search))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var models []UserSchema
	err = r.db.WithContext(ctx).
		Scopes(matching).
		Order("id ASC").
		Offset(int((page - 1) * limit)).
		Limit(int(limit)).
		Find(&models).Error
	if err != nil {
		log.Error("failed to list users from db", zap.Error(err), zap.String("query", search), zap.Int64("page", page), zap.Int64("limit", limit))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = *model.toDomain()
	}

	return users, total, nil
}
