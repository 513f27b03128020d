package repository

import (
	"context"
	"errors"
	"slices"
	"strings"

	"newsadvance/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for the local user projection.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetSummaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error)
	Create(ctx context.Context, user *models.User) error
	SetStaff(ctx context.Context, username string, staff bool) (*models.User, error)
	ListStaff(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapErr(err, "User", id)
	}
	return &user, nil
}

// GetByUsername returns nil, nil when no user has that name.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetSummaries loads author display info for a batch of users.
func (r *userRepository) GetSummaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	out := make(map[uint]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for batch := range slices.Chunk(ids, parentBatchSize) {
		var users []models.User
		err := r.db.WithContext(ctx).
			Select("id", "username", "avatar").
			Where("id IN ?", batch).
			Find(&users).Error
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		for _, u := range users {
			out[u.ID] = u.Summary()
		}
	}
	return out, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

func (r *userRepository) SetStaff(ctx context.Context, username string, staff bool) (*models.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	if err := r.db.WithContext(ctx).Model(user).Update("is_staff", staff).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	user.IsStaff = staff
	return user, nil
}

func (r *userRepository) ListStaff(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("is_staff = ?", true).Order("username").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
