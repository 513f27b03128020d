package repository

import (
	"context"
	"errors"

	"newsadvance/internal/models"
	"newsadvance/internal/observability"

	"gorm.io/gorm"
)

// FlagRepository defines persistence operations for moderation reports.
type FlagRepository interface {
	// Upsert creates the (comment, user) flag or refreshes its reason and note.
	Upsert(ctx context.Context, flag *models.CommentFlag) (created bool, err error)
	ListOpen(ctx context.Context, offset, limit int) ([]*models.CommentFlag, error)
	CountOpen(ctx context.Context) (int64, error)
	Resolve(ctx context.Context, id uint) error
}

type flagRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewFlagRepository creates a new FlagRepository
func NewFlagRepository(db *gorm.DB) FlagRepository {
	return &flagRepository{db: db, log: observability.NewRepoLogger("comment_flags")}
}

func (r *flagRepository) Upsert(ctx context.Context, flag *models.CommentFlag) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CommentFlag
		err := tx.Where("comment_id = ? AND user_id = ?", flag.CommentID, flag.UserID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			return tx.Create(flag).Error
		}
		if err != nil {
			return err
		}
		err = tx.Model(&existing).Updates(map[string]interface{}{
			"reason":   flag.Reason,
			"note":     flag.Note,
			"resolved": false,
		}).Error
		if err != nil {
			return err
		}
		flag.ID = existing.ID
		flag.CreatedAt = existing.CreatedAt
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "upsert")
		return false, models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{
		"flag_id":    flag.ID,
		"comment_id": flag.CommentID,
		"created":    created,
	})
	return created, nil
}

func (r *flagRepository) ListOpen(ctx context.Context, offset, limit int) ([]*models.CommentFlag, error) {
	var flags []*models.CommentFlag
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Comment").
		Preload("Comment.User").
		Scopes(paginate(offset, limit)).
		Where("resolved = ?", false).
		Order("created_at ASC").Order("id ASC").
		Find(&flags).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return flags, nil
}

func (r *flagRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CommentFlag{}).Where("resolved = ?", false).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *flagRepository) Resolve(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.CommentFlag{}).Where("id = ?", id).Update("resolved", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Flag", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"flag_id": id, "resolved": true})
	return nil
}
