package repository

import (
	"context"
	"errors"

	"newsadvance/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferencesRepository stores per-user comment settings.
type PreferencesRepository interface {
	// Get returns the stored preferences or the defaults when none exist.
	Get(ctx context.Context, userID uint) (models.UserPreferences, error)
	Save(ctx context.Context, prefs *models.UserPreferences) error
}

type preferencesRepository struct {
	db *gorm.DB
}

// NewPreferencesRepository creates a new PreferencesRepository
func NewPreferencesRepository(db *gorm.DB) PreferencesRepository {
	return &preferencesRepository{db: db}
}

func (r *preferencesRepository) Get(ctx context.Context, userID uint) (models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultPreferences(userID), nil
	}
	if err != nil {
		return models.UserPreferences{}, models.NewInternalError(err)
	}
	return prefs, nil
}

// Save upserts every column; Select("*") keeps false booleans from being
// replaced by their column defaults.
func (r *preferencesRepository) Save(ctx context.Context, prefs *models.UserPreferences) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"show_comments", "notify_on_comment_reply", "updated_at"}),
		}).
		Select("*").
		Create(prefs).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
