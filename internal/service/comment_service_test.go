package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"newsadvance/internal/models"
	"newsadvance/internal/repository"
	"newsadvance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commentRepoStub overrides the repository methods a test cares about.
type commentRepoStub struct {
	repository.CommentRepository
	getByIDFn      func(context.Context, uint) (*models.Comment, error)
	updateFieldsFn func(context.Context, uint, map[string]interface{}) error
}

func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}

func (s *commentRepoStub) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.updateFieldsFn(ctx, id, fields)
}

func TestCommentService_Create_Validation(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, st.db, "author", false)
	article := testutil.CreateArticle(t, st.db)

	t.Run("empty content", func(t *testing.T) {
		_, err := st.comments.Create(ctx, CreateCommentInput{ArticleID: article.ID, UserID: author.ID, Content: "   "})
		assertAppErrorCode(t, err, models.CodeValidation)
	})

	t.Run("content too long", func(t *testing.T) {
		_, err := st.comments.Create(ctx, CreateCommentInput{
			ArticleID: article.ID,
			UserID:    author.ID,
			Content:   strings.Repeat("x", 5001),
		})
		assertAppErrorCode(t, err, models.CodeValidation)
	})

	t.Run("unknown article", func(t *testing.T) {
		_, err := st.comments.Create(ctx, CreateCommentInput{ArticleID: article.ID + 100, UserID: author.ID, Content: "hi"})
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("unknown parent", func(t *testing.T) {
		missing := uint(9999)
		_, err := st.comments.Create(ctx, CreateCommentInput{ParentID: &missing, UserID: author.ID, Content: "hi"})
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("parent on another article", func(t *testing.T) {
		other := testutil.CreateArticle(t, st.db)
		parent := testutil.CreateComment(t, st.db, other.ID, author.ID, nil, "elsewhere", 0)
		_, err := st.comments.Create(ctx, CreateCommentInput{ArticleID: article.ID, ParentID: &parent.ID, UserID: author.ID, Content: "hi"})
		assertAppErrorCode(t, err, models.CodeValidation)
	})
}

func TestCommentService_Create_Depth(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, st.db, "a", false)
	b := testutil.CreateUser(t, st.db, "b", false)
	article := testutil.CreateArticle(t, st.db)

	top, err := st.comments.Create(ctx, CreateCommentInput{ArticleID: article.ID, UserID: a.ID, Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, top.Depth)
	assert.Equal(t, 0, top.CachedScore)
	assert.Nil(t, top.ParentID)
	assert.Equal(t, a.Username, top.User.Username)

	parent := top
	for depth := 1; depth <= 7; depth++ {
		reply, err := st.comments.Create(ctx, CreateCommentInput{ParentID: &parent.ID, UserID: b.ID, Content: "Hi back"})
		require.NoError(t, err)
		assert.Equal(t, depth, reply.Depth)
		require.NotNil(t, reply.ParentID)
		assert.Equal(t, parent.ID, *reply.ParentID)
		assert.Equal(t, article.ID, reply.ArticleID)
		parent = reply
	}

	// depth never changes afterwards
	_, err = st.comments.Edit(ctx, EditCommentInput{CommentID: parent.ID, UserID: b.ID, Content: "edited"})
	require.NoError(t, err)
	reloaded, err := st.comments.GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Depth)
}

func TestCommentService_Create_MaxReplyDepth(t *testing.T) {
	t.Parallel()

	db := testutil.NewDB(t)
	svc := NewCommentService(
		repository.NewCommentRepository(db),
		repository.NewArticleRepository(db),
		nil, nil,
		CommentSettings{MaxLength: 100, MaxReplyDepth: 1},
	)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "u", false)
	article := testutil.CreateArticle(t, db)

	top, err := svc.Create(ctx, CreateCommentInput{ArticleID: article.ID, UserID: u.ID, Content: "0"})
	require.NoError(t, err)
	first, err := svc.Create(ctx, CreateCommentInput{ParentID: &top.ID, UserID: u.ID, Content: "1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateCommentInput{ParentID: &first.ID, UserID: u.ID, Content: "2"})
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestCommentService_RepliesToHiddenParents(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, st.db, "a", false)
	staff := testutil.CreateUser(t, st.db, "mod", true)
	article := testutil.CreateArticle(t, st.db)

	deleted := testutil.CreateComment(t, st.db, article.ID, a.ID, nil, "gone", 0)
	_, err := st.comments.SoftDelete(ctx, deleted.ID, a.ID)
	require.NoError(t, err)
	removed := testutil.CreateComment(t, st.db, article.ID, a.ID, nil, "bad", 0)
	_, err = st.comments.Moderate(ctx, removed.ID, viewerOf(staff), true)
	require.NoError(t, err)

	for _, parent := range []*models.Comment{deleted, removed} {
		_, err := st.comments.Create(ctx, CreateCommentInput{ParentID: &parent.ID, UserID: staff.ID, Content: "still replying"})
		assert.NoError(t, err)
	}
}

func TestCommentService_ReplyNotification(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, st.db, "a", false)
	b := testutil.CreateUser(t, st.db, "b", false)
	quiet := testutil.CreateUser(t, st.db, "quiet", false)
	article := testutil.CreateArticle(t, st.db)

	off := false
	_, err := st.prefs.Update(ctx, quiet.ID, UpdatePreferencesInput{NotifyOnCommentReply: &off})
	require.NoError(t, err)

	top := testutil.CreateComment(t, st.db, article.ID, a.ID, nil, "top", 0)
	quietTop := testutil.CreateComment(t, st.db, article.ID, quiet.ID, nil, "shh", 0)

	reply, err := st.comments.Create(ctx, CreateCommentInput{ParentID: &top.ID, UserID: b.ID, Content: "reply"})
	require.NoError(t, err)
	_, err = st.comments.Create(ctx, CreateCommentInput{ParentID: &top.ID, UserID: a.ID, Content: "self reply"})
	require.NoError(t, err)
	_, err = st.comments.Create(ctx, CreateCommentInput{ParentID: &quietTop.ID, UserID: b.ID, Content: "to quiet"})
	require.NoError(t, err)

	assert.Equal(t, []recordedReply{{recipient: a.ID, replyID: reply.ID}}, st.replies.all())
}

func TestCommentService_Edit(t *testing.T) {
	t.Parallel()

	t.Run("owner edits", func(t *testing.T) {
		t.Parallel()
		st := newNestedStack(t)
		ctx := context.Background()
		a := testutil.CreateUser(t, st.db, "a", false)
		article := testutil.CreateArticle(t, st.db)
		c := testutil.CreateComment(t, st.db, article.ID, a.ID, nil, "first", 0)

		edited, err := st.comments.Edit(ctx, EditCommentInput{CommentID: c.ID, UserID: a.ID, Content: " second "})
		require.NoError(t, err)
		assert.Equal(t, "second", edited.Content)
		assert.True(t, edited.IsEdited)
		assert.NotNil(t, edited.EditedAt)
	})

	cases := []struct {
		name    string
		comment models.Comment
		userID  uint
		code    string
	}{
		{"non-owner", models.Comment{ID: 1, UserID: 10}, 1, models.CodePermissionDenied},
		{"removed by moderator", models.Comment{ID: 1, UserID: 1, IsRemovedModerator: true}, 1, models.CodePermissionDenied},
		{"deleted by user", models.Comment{ID: 1, UserID: 1, IsDeletedByUser: true}, 1, models.CodePermissionDenied},
		{"empty content", models.Comment{ID: 1, UserID: 1}, 1, models.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &commentRepoStub{
				getByIDFn: func(context.Context, uint) (*models.Comment, error) {
					c := tc.comment
					return &c, nil
				},
				updateFieldsFn: func(context.Context, uint, map[string]interface{}) error {
					t.Fatal("no write expected")
					return nil
				},
			}
			svc := NewCommentService(repo, nil, nil, nil, CommentSettings{})
			content := "new"
			if tc.code == models.CodeValidation {
				content = ""
			}
			_, err := svc.Edit(context.Background(), EditCommentInput{CommentID: 1, UserID: tc.userID, Content: content})
			assertAppErrorCode(t, err, tc.code)
		})
	}
}

func TestCommentService_SoftDelete(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, st.db, "a", false)
	b := testutil.CreateUser(t, st.db, "b", false)
	article := testutil.CreateArticle(t, st.db)
	c := testutil.CreateComment(t, st.db, article.ID, a.ID, nil, "secret", 0)
	child := testutil.CreateComment(t, st.db, article.ID, b.ID, c, "child", 0)

	_, err := st.comments.SoftDelete(ctx, c.ID, b.ID)
	assertAppErrorCode(t, err, models.CodePermissionDenied)

	deleted, err := st.comments.SoftDelete(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeletedByUser)

	again, err := st.comments.SoftDelete(ctx, c.ID, a.ID)
	require.NoError(t, err, "deleting twice is a no-op")
	assert.True(t, again.IsDeletedByUser)

	// the row and its children remain fetchable
	children, _, _, err := st.comments.GetChildren(ctx, c.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
}

func TestCommentService_Moderate(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, st.db, "a", false)
	staff := testutil.CreateUser(t, st.db, "mod", true)
	article := testutil.CreateArticle(t, st.db)
	c := testutil.CreateComment(t, st.db, article.ID, a.ID, nil, "spicy", 0)

	_, err := st.comments.Moderate(ctx, c.ID, viewerOf(a), true)
	assertAppErrorCode(t, err, models.CodePermissionDenied)

	_, err = st.comments.Moderate(ctx, c.ID, nil, true)
	assertAppErrorCode(t, err, models.CodePermissionDenied)

	removed, err := st.comments.Moderate(ctx, c.ID, viewerOf(staff), true)
	require.NoError(t, err)
	assert.Equal(t, models.CommentModeratorRemoved, removed.State())

	restored, err := st.comments.Moderate(ctx, c.ID, viewerOf(staff), false)
	require.NoError(t, err)
	assert.Equal(t, models.CommentActive, restored.State())

	_, err = st.comments.Moderate(ctx, 9999, viewerOf(staff), true)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestCommentService_GetChildrenAndHistory(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, st.db, "a", false)
	article := testutil.CreateArticle(t, st.db)
	root := testutil.CreateComment(t, st.db, article.ID, a.ID, nil, "root", 0)
	for i := 0; i < 12; i++ {
		testutil.CreateComment(t, st.db, article.ID, a.ID, root, "child", i)
	}

	page, clamped, numPages, err := st.comments.GetChildren(ctx, root.ID, 9, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, clamped, "out of range pages clamp to the last page")
	assert.Equal(t, 3, numPages)
	assert.Len(t, page, 2)

	first, _, _, err := st.comments.GetChildren(ctx, root.ID, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 11, first[0].CachedScore)

	history, _, numPages, err := st.comments.ListByUser(ctx, a.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, history, 10)
	assert.Equal(t, 2, numPages)

	_, _, _, err = st.comments.GetChildren(ctx, 9999, 1, 5)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestCommentService_RepositoryErrorPropagates(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("db down")
	repo := &commentRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Comment, error) { return nil, repoErr },
	}
	svc := NewCommentService(repo, nil, nil, nil, CommentSettings{})
	_, err := svc.SoftDelete(context.Background(), 1, 1)
	assert.ErrorIs(t, err, repoErr)
}
