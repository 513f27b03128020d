package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"newsadvance/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture is a hand-written thread layout, typically loaded from YAML:
//
//	users:
//	  - username: alice
//	    staff: true
//	articles:
//	  - title: Rates held steady
//	    url: https://example.com/rates
//	    comments:
//	      - author: alice
//	        content: First!
//	        votes: {bob: 1}
//	        replies:
//	          - author: bob
//	            content: Not quite.
type Fixture struct {
	Users    []FixtureUser    `yaml:"users"`
	Articles []FixtureArticle `yaml:"articles"`
}

// FixtureUser is a seeded account.
type FixtureUser struct {
	Username string `yaml:"username"`
	Staff    bool   `yaml:"staff"`
}

// FixtureArticle is an article and its top-level comments.
type FixtureArticle struct {
	Title    string           `yaml:"title"`
	URL      string           `yaml:"url"`
	Source   string           `yaml:"source"`
	Comments []FixtureComment `yaml:"comments"`
}

// FixtureComment is one comment, its votes keyed by username, and replies.
type FixtureComment struct {
	Author  string           `yaml:"author"`
	Content string           `yaml:"content"`
	Votes   map[string]int   `yaml:"votes"`
	Deleted bool             `yaml:"deleted"`
	Removed bool             `yaml:"removed"`
	Replies []FixtureComment `yaml:"replies"`
}

// DecodeFixture parses a YAML fixture. Unknown keys are rejected.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &fx, nil
}

// LoadFixtureFile reads and parses the fixture at path.
func LoadFixtureFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return DecodeFixture(file)
}

// ApplyFixture persists fx. Comments are created in document order, one
// second apart, so ties in score fall back to document order reversed.
func ApplyFixture(ctx context.Context, db *gorm.DB, fx *Fixture, opts Options) (Summary, error) {
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

	users := make(map[string]*models.User, len(fx.Users))
	for _, fu := range fx.Users {
		fu := fu
		u, err := f.CreateUser(ctx, func(u *models.User) {
			u.Username = fu.Username
			u.Email = fu.Username + "@example.com"
			u.IsStaff = fu.Staff
		})
		if err != nil {
			return sum, fmt.Errorf("create user %q: %w", fu.Username, err)
		}
		users[fu.Username] = u
		sum.Users++
	}

	a := fixtureApplier{f: f, users: users, clock: time.Now().Add(-24 * time.Hour).Truncate(time.Second)}
	for _, fa := range fx.Articles {
		fa := fa
		article, err := f.CreateArticle(ctx, func(art *models.Article) {
			art.Title = fa.Title
			if fa.URL != "" {
				art.URL = fa.URL
			}
			if fa.Source != "" {
				art.Source = fa.Source
			}
		})
		if err != nil {
			return sum, fmt.Errorf("create article %q: %w", fa.Title, err)
		}
		sum.Articles++
		for _, fc := range fa.Comments {
			if err := a.apply(ctx, article.ID, nil, fc, &sum); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

type fixtureApplier struct {
	f     *Factory
	users map[string]*models.User
	clock time.Time
}

func (a *fixtureApplier) user(name string) (*models.User, error) {
	u, ok := a.users[name]
	if !ok {
		return nil, fmt.Errorf("fixture references unknown user %q", name)
	}
	return u, nil
}

func (a *fixtureApplier) apply(ctx context.Context, articleID uint, parent *models.Comment, fc FixtureComment, sum *Summary) error {
	author, err := a.user(fc.Author)
	if err != nil {
		return err
	}
	if fc.Content == "" {
		return fmt.Errorf("fixture comment by %q has no content", fc.Author)
	}

	a.clock = a.clock.Add(time.Second)
	c := &models.Comment{
		ArticleID: articleID,
		UserID:    author.ID,
		Content:   fc.Content,
		CreatedAt: a.clock,
	}
	if parent != nil {
		c.ParentID = &parent.ID
		c.Depth = parent.Depth + 1
	}
	if err := a.f.comments.Create(ctx, c); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	sum.Comments++

	if fc.Deleted || fc.Removed {
		err := a.f.comments.UpdateFields(ctx, c.ID, map[string]interface{}{
			"is_deleted_by_user":   fc.Deleted,
			"is_removed_moderator": fc.Removed,
		})
		if err != nil {
			return err
		}
	}

	for name, value := range fc.Votes {
		voter, err := a.user(name)
		if err != nil {
			return err
		}
		if err := a.f.Vote(ctx, c.ID, voter.ID, value); err != nil {
			return fmt.Errorf("vote by %q: %w", name, err)
		}
		sum.Votes++
	}

	for _, reply := range fc.Replies {
		if err := a.apply(ctx, articleID, c, reply, sum); err != nil {
			return err
		}
	}
	return nil
}
