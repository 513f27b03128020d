// Package seed creates demo users, articles and comment threads for
// development databases. Not used by the server.
package seed

import (
	"context"
	"fmt"
	"time"

	"newsadvance/internal/models"
	"newsadvance/internal/repository"
	"newsadvance/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password given to every seeded user.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them.
type Factory struct {
	db       *gorm.DB
	opts     Options
	faker    *gofakeit.Faker
	comments repository.CommentRepository
	ledger   *service.VoteLedger
	password string
}

// NewFactory creates a Factory bound to db. A zero Options.RandSeed seeds
// from the clock.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	opts = opts.withDefaults()
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	password := DefaultPassword
	if !opts.SkipBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password: %w", err)
		}
		password = string(hashed)
	}

	return &Factory{
		db:       db,
		opts:     opts,
		faker:    gofakeit.New(seed),
		comments: repository.NewCommentRepository(db),
		ledger:   service.NewVoteLedger(repository.NewVoteRepository(db)),
		password: password,
	}, nil
}

// CreateUser persists a user with a generated, unique username.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	username := fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999))
	user := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: f.password,
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateArticle persists an article with a generated headline.
func (f *Factory) CreateArticle(ctx context.Context, overrides ...func(*models.Article)) (*models.Article, error) {
	published := f.pastTime()
	article := &models.Article{
		Title:       f.faker.Sentence(8),
		URL:         fmt.Sprintf("https://%s/%s", f.faker.DomainName(), f.faker.UUID()),
		Source:      f.faker.Company(),
		PublishedAt: &published,
	}
	for _, override := range overrides {
		override(article)
	}
	if err := f.db.WithContext(ctx).Create(article).Error; err != nil {
		return nil, err
	}
	return article, nil
}

// CreateComment persists a comment under parent (nil for top level). Depth is
// derived from the parent.
func (f *Factory) CreateComment(ctx context.Context, articleID, userID uint, parent *models.Comment, content string) (*models.Comment, error) {
	if content == "" {
		content = f.faker.Paragraph(1, f.faker.Number(1, 4), 12, "\n\n")
	}
	comment := &models.Comment{
		ArticleID: articleID,
		UserID:    userID,
		Content:   content,
		CreatedAt: f.pastTime(),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
		comment.Depth = parent.Depth + 1
		// replies never predate their parent
		if comment.CreatedAt.Before(parent.CreatedAt) {
			comment.CreatedAt = parent.CreatedAt.Add(time.Duration(f.faker.Number(1, 180)) * time.Minute)
		}
	}
	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Vote records userID's vote through the ledger so cached scores stay exact.
func (f *Factory) Vote(ctx context.Context, commentID, userID uint, value int) error {
	_, err := f.ledger.SetVote(ctx, commentID, userID, &value)
	return err
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return time.Now().Add(-back).Truncate(time.Second)
}
