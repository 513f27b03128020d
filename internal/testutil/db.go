// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"newsadvance/internal/config"
	"newsadvance/internal/database"
	"newsadvance/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Uint64

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.Config{Env: "test", DBDriver: "sqlite", DBSQLitePath: ":memory:"}
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewRedis starts a miniredis server and returns it with a connected client.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts a user with a unique username derived from name.
func CreateUser(t testing.TB, db *gorm.DB, name string, staff bool) *models.User {
	t.Helper()
	n := seq.Add(1)
	user := &models.User{
		Username: fmt.Sprintf("%s%d", name, n),
		Email:    fmt.Sprintf("%s%d@example.com", name, n),
		Password: "x",
	}
	require.NoError(t, db.Create(user).Error)
	if staff {
		require.NoError(t, db.Model(user).Update("is_staff", true).Error)
		user.IsStaff = true
	}
	return user
}

// CreateArticle inserts an article.
func CreateArticle(t testing.TB, db *gorm.DB) *models.Article {
	t.Helper()
	n := seq.Add(1)
	article := &models.Article{
		Title:  fmt.Sprintf("Article %d", n),
		URL:    fmt.Sprintf("https://news.example.com/a/%d", n),
		Source: "example",
	}
	require.NoError(t, db.Create(article).Error)
	return article
}

// CreateComment inserts a comment under parent (nil for top-level) with the
// given cached score.
func CreateComment(t testing.TB, db *gorm.DB, articleID, userID uint, parent *models.Comment, content string, score int) *models.Comment {
	t.Helper()
	comment := &models.Comment{
		ArticleID:   articleID,
		UserID:      userID,
		Content:     content,
		CachedScore: score,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
		comment.Depth = parent.Depth + 1
	}
	require.NoError(t, db.Create(comment).Error)
	return comment
}
