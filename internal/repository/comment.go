package repository

import (
	"context"
	"slices"

	"newsadvance/internal/models"
	"newsadvance/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comment trees. There is
// no delete: rows outlive their content so children keep a valid parent.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	ListTopLevel(ctx context.Context, articleID uint, offset, limit int) ([]*models.Comment, error)
	CountTopLevel(ctx context.Context, articleID uint) (int64, error)
	CountByArticle(ctx context.Context, articleID uint) (int64, error)
	ListChildren(ctx context.Context, parentID uint, offset, limit int) ([]*models.Comment, error)
	CountChildren(ctx context.Context, parentID uint) (int64, error)
	ListChildrenOf(ctx context.Context, parentIDs []uint, perParent int) ([]*models.Comment, error)
	CountChildrenOf(ctx context.Context, parentIDs []uint) (map[uint]int, error)
	ListByUser(ctx context.Context, userID uint, offset, limit int) ([]*models.Comment, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()

	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{
		"comment_id": comment.ID,
		"article_id": comment.ArticleID,
		"depth":      comment.Depth,
	})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer observability.TrackQuery("get", "comments")()

	var comment models.Comment
	err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error
	if err != nil {
		return nil, mapErr(err, "Comment", id)
	}
	return &comment, nil
}

// UpdateFields writes only the named columns. Whole-row saves would race with
// the vote ledger's cached_score increments.
func (r *commentRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	defer observability.TrackQuery("update", "comments")()

	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"comment_id": id, "fields": len(fields)})
	return nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, articleID uint, offset, limit int) ([]*models.Comment, error) {
	defer observability.TrackQuery("list_top_level", "comments")()

	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Scopes(approved, threadOrder, paginate(offset, limit)).
		Where("article_id = ? AND parent_id IS NULL", articleID).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) CountTopLevel(ctx context.Context, articleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Scopes(approved).
		Where("article_id = ? AND parent_id IS NULL", articleID).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *commentRepository) CountByArticle(ctx context.Context, articleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Scopes(approved).
		Where("article_id = ?", articleID).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *commentRepository) ListChildren(ctx context.Context, parentID uint, offset, limit int) ([]*models.Comment, error) {
	defer observability.TrackQuery("list_children", "comments")()

	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Scopes(approved, threadOrder, paginate(offset, limit)).
		Where("parent_id = ?", parentID).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) CountChildren(ctx context.Context, parentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Scopes(approved).
		Where("parent_id = ?", parentID).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// parentBatchSize bounds the parent_id IN list of one query. Postgres caps a
// statement at 65535 bind parameters.
const parentBatchSize = 1000

// ListChildrenOf returns the best perParent direct children of each given
// parent, in thread order within a parent. The cut happens in SQL so a parent
// with thousands of replies only ships the rows that will be shown. Authors
// are not preloaded.
func (r *commentRepository) ListChildrenOf(ctx context.Context, parentIDs []uint, perParent int) ([]*models.Comment, error) {
	if len(parentIDs) == 0 || perParent <= 0 {
		return nil, nil
	}
	defer observability.TrackQuery("list_children_of", "comments")()

	var comments []*models.Comment
	for batch := range slices.Chunk(parentIDs, parentBatchSize) {
		ranked := r.db.WithContext(ctx).Model(&models.Comment{}).
			Select("comments.*, ROW_NUMBER() OVER (PARTITION BY parent_id ORDER BY cached_score DESC, created_at DESC, id DESC) AS reply_rank").
			Scopes(approved).
			Where("parent_id IN ?", batch)

		var rows []*models.Comment
		err := r.db.WithContext(ctx).
			Table("(?) AS ranked", ranked).
			Where("reply_rank <= ?", perParent).
			Scopes(threadOrder).
			Find(&rows).Error
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		comments = append(comments, rows...)
	}
	return comments, nil
}

type childCount struct {
	ParentID uint
	Count    int
}

// CountChildrenOf returns the number of direct children per parent. Parents
// without children are absent from the map.
func (r *commentRepository) CountChildrenOf(ctx context.Context, parentIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(parentIDs))
	if len(parentIDs) == 0 {
		return counts, nil
	}

	for batch := range slices.Chunk(parentIDs, parentBatchSize) {
		var rows []childCount
		err := r.db.WithContext(ctx).Model(&models.Comment{}).
			Select("parent_id, COUNT(*) AS count").
			Scopes(approved).
			Where("parent_id IN ?", batch).
			Group("parent_id").
			Scan(&rows).Error
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		for _, row := range rows {
			counts[row.ParentID] = row.Count
		}
	}
	return counts, nil
}

// ListByUser returns a user's comments, newest first.
func (r *commentRepository) ListByUser(ctx context.Context, userID uint, offset, limit int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Article").
		Scopes(paginate(offset, limit)).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
