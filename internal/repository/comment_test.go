package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"newsadvance/internal/models"
	"newsadvance/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Content: "Nice article!", ArticleID: 1, UserID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), comment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListTopLevelQueryShape(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "comments" WHERE .*parent_id IS NULL.* ORDER BY cached_score DESC,created_at DESC,id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "user_id"}).
			AddRow(1, "Comment 1", 101).
			AddRow(2, "Comment 2", 102))

	comments, err := repo.ListTopLevel(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, uint(102), comments[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_UpdateFieldsMissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "comments" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateFields(context.Background(), 42, map[string]interface{}{"content": "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ThreadOrdering(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "u", false)
	article := testutil.CreateArticle(t, db)

	low := testutil.CreateComment(t, db, article.ID, user.ID, nil, "low", 1)
	high := testutil.CreateComment(t, db, article.ID, user.ID, nil, "high", 5)
	older := testutil.CreateComment(t, db, article.ID, user.ID, nil, "older", 3)
	newer := testutil.CreateComment(t, db, article.ID, user.ID, nil, "newer", 3)
	require.NoError(t, db.Model(older).UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)

	hidden := testutil.CreateComment(t, db, article.ID, user.ID, nil, "hidden", 100)
	require.NoError(t, repo.UpdateFields(ctx, hidden.ID, map[string]interface{}{"is_approved": false}))

	top, err := repo.ListTopLevel(ctx, article.ID, 0, 10)
	require.NoError(t, err)
	ids := make([]uint, 0, len(top))
	for _, c := range top {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []uint{high.ID, newer.ID, older.ID, low.ID}, ids)

	count, err := repo.CountTopLevel(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	page, err := repo.ListTopLevel(ctx, article.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, newer.ID, page[0].ID)
}

func TestCommentRepository_Children(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "u", false)
	article := testutil.CreateArticle(t, db)

	root := testutil.CreateComment(t, db, article.ID, user.ID, nil, "root", 0)
	other := testutil.CreateComment(t, db, article.ID, user.ID, nil, "other", 0)
	a := testutil.CreateComment(t, db, article.ID, user.ID, root, "a", 2)
	b := testutil.CreateComment(t, db, article.ID, user.ID, root, "b", 7)
	testutil.CreateComment(t, db, article.ID, user.ID, other, "c", 0)
	testutil.CreateComment(t, db, article.ID, user.ID, a, "a1", 0)

	assert.Equal(t, 1, a.Depth)

	children, err := repo.ListChildren(ctx, root.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, b.ID, children[0].ID)

	n, err := repo.CountChildren(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	batch, err := repo.ListChildrenOf(ctx, []uint{root.ID, other.ID}, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 3)

	windowed, err := repo.ListChildrenOf(ctx, []uint{root.ID, other.ID}, 1)
	require.NoError(t, err)
	require.Len(t, windowed, 2, "one row per parent")
	assert.Equal(t, b.ID, windowed[0].ID, "the best child of each parent survives the cut")

	none, err := repo.ListChildrenOf(ctx, []uint{root.ID}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	many := make([]uint, 0, 2*parentBatchSize+1)
	for i := uint(1); i <= 2*parentBatchSize; i++ {
		many = append(many, 100_000+i)
	}
	many = append(many, root.ID)
	spread, err := repo.ListChildrenOf(ctx, many, 10)
	require.NoError(t, err)
	assert.Len(t, spread, 2, "large parent lists are split across queries")
	spreadCounts, err := repo.CountChildrenOf(ctx, many)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{root.ID: 2}, spreadCounts)

	counts, err := repo.CountChildrenOf(ctx, []uint{root.ID, other.ID, a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{root.ID: 2, other.ID: 1, a.ID: 1}, counts)

	total, err := repo.CountByArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	mine, err := repo.ListByUser(ctx, user.ID, 0, 3)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, article.Title, mine[0].Article.Title)
}
