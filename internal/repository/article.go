package repository

import (
	"context"

	"newsadvance/internal/models"

	"gorm.io/gorm"
)

// ArticleRepository reads the article projection. Comments only need existence.
type ArticleRepository interface {
	Exists(ctx context.Context, id uint) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.Article, error)
	Create(ctx context.Context, article *models.Article) error
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository creates a new ArticleRepository
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *articleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := r.db.WithContext(ctx).First(&article, id).Error; err != nil {
		return nil, mapErr(err, "Article", id)
	}
	return &article, nil
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	if err := r.db.WithContext(ctx).Create(article).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
