package seed

import (
	"context"
	"fmt"
	"log/slog"

	"newsadvance/internal/models"
	"newsadvance/internal/observability"

	"gorm.io/gorm"
)

// Options configure the random seeder.
type Options struct {
	Users    int
	Articles int
	// TopLevel is the number of top-level comments per article.
	TopLevel int
	// MaxDepth bounds generated reply chains.
	MaxDepth int
	// MaxReplies bounds the direct replies generated under one comment.
	MaxReplies int
	// VoteRate is the chance, in percent, that a user votes on a comment.
	VoteRate   int
	MaxDays    int
	RandSeed   int64
	SkipBcrypt bool
	Clean      bool
}

func (o Options) withDefaults() Options {
	if o.Users <= 0 {
		o.Users = 20
	}
	if o.Articles <= 0 {
		o.Articles = 3
	}
	if o.TopLevel <= 0 {
		o.TopLevel = 12
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 8
	}
	if o.MaxReplies <= 0 {
		o.MaxReplies = 3
	}
	if o.VoteRate < 0 || o.VoteRate > 100 {
		o.VoteRate = 30
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 30
	}
	return o
}

// Summary counts what a seeding run created.
type Summary struct {
	Users    int
	Articles int
	Comments int
	Votes    int
}

// Random fills db with random users, articles and comment threads.
func Random(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	var sum Summary

	if opts.Clean {
		if err := Clean(ctx, db); err != nil {
			return sum, fmt.Errorf("clean: %w", err)
		}
	}

	f, err := NewFactory(db, opts)
	if err != nil {
		return sum, err
	}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	for i := 0; i < opts.Articles; i++ {
		article, err := f.CreateArticle(ctx)
		if err != nil {
			return sum, fmt.Errorf("create article: %w", err)
		}
		sum.Articles++

		for j := 0; j < opts.TopLevel; j++ {
			author := users[f.faker.Number(0, len(users)-1)]
			root, err := f.CreateComment(ctx, article.ID, author.ID, nil, "")
			if err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			n, v, err := f.grow(ctx, article.ID, users, root)
			if err != nil {
				return sum, err
			}
			sum.Comments += 1 + n
			sum.Votes += v
		}
	}

	observability.Logger.Info("seed completed",
		slog.Int("users", sum.Users),
		slog.Int("articles", sum.Articles),
		slog.Int("comments", sum.Comments),
		slog.Int("votes", sum.Votes),
	)
	return sum, nil
}

// grow votes on c and adds a random reply subtree beneath it.
func (f *Factory) grow(ctx context.Context, articleID uint, users []*models.User, c *models.Comment) (comments, votes int, err error) {
	for _, u := range users {
		if f.faker.Number(1, 100) > f.opts.VoteRate {
			continue
		}
		value := models.VoteUp
		if f.faker.Number(1, 100) <= 30 {
			value = models.VoteDown
		}
		if err := f.Vote(ctx, c.ID, u.ID, value); err != nil {
			return comments, votes, fmt.Errorf("vote: %w", err)
		}
		votes++
	}

	if c.Depth+1 >= f.opts.MaxDepth {
		return comments, votes, nil
	}
	// fewer replies the deeper the chain
	replies := f.faker.Number(0, f.opts.MaxReplies)
	if c.Depth > 2 {
		replies = f.faker.Number(0, 1)
	}
	for i := 0; i < replies; i++ {
		author := users[f.faker.Number(0, len(users)-1)]
		reply, err := f.CreateComment(ctx, articleID, author.ID, c, "")
		if err != nil {
			return comments, votes, fmt.Errorf("create reply: %w", err)
		}
		n, v, err := f.grow(ctx, articleID, users, reply)
		if err != nil {
			return comments, votes, err
		}
		comments += 1 + n
		votes += v
	}
	return comments, votes, nil
}

// Clean removes all comment data, articles and users.
func Clean(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []interface{}{
		&models.CommentFlag{},
		&models.CommentVote{},
		&models.Comment{},
		&models.UserPreferences{},
		&models.Article{},
		&models.User{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
