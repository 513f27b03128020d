package service

import (
	"context"
	"fmt"
	"testing"

	"newsadvance/internal/config"
	"newsadvance/internal/models"
	"newsadvance/internal/repository"
	"newsadvance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain creates a linear thread of n comments below parent and returns them.
func chain(t *testing.T, st *stack, articleID, userID uint, parent *models.Comment, n int) []*models.Comment {
	t.Helper()
	out := make([]*models.Comment, 0, n)
	for i := 0; i < n; i++ {
		parent = testutil.CreateComment(t, st.db, articleID, userID, parent, fmt.Sprintf("level %d", i), 0)
		out = append(out, parent)
	}
	return out
}

// childLoads records how many rows each ListChildrenOf call returned per parent.
type childLoads struct {
	repository.CommentRepository
	rows       int
	maxPerCall int
}

func (c *childLoads) ListChildrenOf(ctx context.Context, parentIDs []uint, perParent int) ([]*models.Comment, error) {
	out, err := c.CommentRepository.ListChildrenOf(ctx, parentIDs, perParent)
	perParentSeen := make(map[uint]int)
	for _, child := range out {
		perParentSeen[*child.ParentID]++
		c.maxPerCall = max(c.maxPerCall, perParentSeen[*child.ParentID])
	}
	c.rows += len(out)
	return out, err
}

func recordChildLoads(st *stack) *childLoads {
	loads := &childLoads{CommentRepository: st.threads.comments}
	st.threads.comments = loads
	return loads
}

func TestThreadService_ListTopLevel_Pagination(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, st.db, "u", false)
	article := testutil.CreateArticle(t, st.db)

	for i := 0; i < 23; i++ {
		top := testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "top", 0)
		if i == 0 {
			testutil.CreateComment(t, st.db, article.ID, u.ID, top, "reply", 0)
		}
	}

	page, err := st.threads.ListTopLevel(ctx, article.ID, nil, 1)
	require.NoError(t, err)
	assert.Len(t, page.Results, 10)
	assert.Equal(t, 3, page.NumPages)
	assert.Equal(t, int64(24), page.TotalComments, "total counts every depth")

	last, err := st.threads.ListTopLevel(ctx, article.ID, nil, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, last.Page)
	assert.Len(t, last.Results, 3)

	low, err := st.threads.ListTopLevel(ctx, article.ID, nil, -4)
	require.NoError(t, err)
	assert.Equal(t, 1, low.Page)

	empty, err := st.threads.ListTopLevel(ctx, article.ID+100, nil, 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Results)
	assert.Equal(t, 1, empty.NumPages)
}

func TestThreadService_OrderingDeterminism(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, st.db, "u", false)
	article := testutil.CreateArticle(t, st.db)
	for i := 0; i < 8; i++ {
		testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "same", 0)
	}
	best := testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "best", 3)

	first, err := st.threads.ListTopLevel(ctx, article.ID, nil, 1)
	require.NoError(t, err)
	second, err := st.threads.ListTopLevel(ctx, article.ID, nil, 1)
	require.NoError(t, err)

	require.Len(t, first.Results, 9)
	assert.Equal(t, best.ID, first.Results[0].ID)
	for i := range first.Results {
		assert.Equal(t, first.Results[i].ID, second.Results[i].ID)
	}
	for i := 2; i < len(first.Results); i++ {
		assert.Greater(t, first.Results[i-1].ID, first.Results[i].ID, "equal scores fall back to newest first")
	}
}

func TestThreadService_NestedWindow(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	loads := recordChildLoads(st)
	ctx := context.Background()
	u := testutil.CreateUser(t, st.db, "u", false)
	article := testutil.CreateArticle(t, st.db)
	top := testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "top", 0)
	for i := 0; i < 60; i++ {
		testutil.CreateComment(t, st.db, article.ID, u.ID, top, "reply", i)
	}
	chain(t, st, article.ID, u.ID, top, 1)

	page, err := st.threads.ListTopLevel(ctx, article.ID, nil, 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	root := page.Results[0]
	assert.Equal(t, 61, root.ReplyCount)
	require.Len(t, root.Replies, 5, "only the first window of replies is inlined")
	assert.Equal(t, 59, root.Replies[0].CachedScore)
	assert.Equal(t, 55, root.Replies[4].CachedScore)
	for _, r := range root.Replies {
		assert.Equal(t, r.Depth, r.DisplayDepth)
		assert.Nil(t, r.ReplyTo)
	}

	assert.Equal(t, 5, loads.maxPerCall, "the database ships at most one window per parent")
	assert.Equal(t, 5, loads.rows)
}

func TestThreadService_NestedDisplayBound(t *testing.T) {
	t.Parallel()

	settings := testThreadSettings(config.DisplayModeNested)
	settings.MaxDisplayDepth = 4
	st := newStack(t, settings)
	ctx := context.Background()
	u := testutil.CreateUser(t, st.db, "u", false)
	article := testutil.CreateArticle(t, st.db)
	top := testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "top", 0)
	chain(t, st, article.ID, u.ID, top, 8)

	page, err := st.threads.ListTopLevel(ctx, article.ID, nil, 1)
	require.NoError(t, err)

	depth := 0
	node := page.Results[0]
	for len(node.Replies) > 0 {
		node = node.Replies[0]
		depth++
	}
	assert.Equal(t, 3, depth)
	assert.Equal(t, 1, node.ReplyCount, "the last rendered node still reports its children")
}

func TestThreadService_Flattened(t *testing.T) {
	t.Parallel()

	st := newStack(t, testThreadSettings(config.DisplayModeFlattened))
	ctx := context.Background()
	article := testutil.CreateArticle(t, st.db)

	// Every level has its own author so reply labels can't fall back to the
	// reply's own name.
	authors := make(map[uint]*models.User)
	parent := testutil.CreateComment(t, st.db, article.ID, testutil.CreateUser(t, st.db, "author0", false).ID, nil, "top", 0)
	top := parent
	levels := make([]*models.Comment, 0, 7) // depths 1..7
	for i := 1; i <= 7; i++ {
		u := testutil.CreateUser(t, st.db, fmt.Sprintf("author%d", i), false)
		parent = testutil.CreateComment(t, st.db, article.ID, u.ID, parent, fmt.Sprintf("level %d", i), 0)
		authors[parent.ID] = u
		levels = append(levels, parent)
	}

	anchor := levels[3] // depth 4
	require.Equal(t, 4, anchor.Depth)
	sider := testutil.CreateUser(t, st.db, "sider", false)
	side := testutil.CreateComment(t, st.db, article.ID, sider.ID, levels[4], "side", 10) // depth 6
	authors[side.ID] = sider

	page, err := st.threads.ListTopLevel(ctx, article.ID, nil, 1)
	require.NoError(t, err)

	node := page.Results[0]
	assert.Equal(t, top.ID, node.ID)
	for i := 0; i < 4; i++ {
		require.Len(t, node.Replies, 1)
		node = node.Replies[0]
	}
	assert.Equal(t, anchor.ID, node.ID)
	assert.Equal(t, 4, node.DisplayDepth)
	assert.Nil(t, node.ReplyTo)
	assert.Equal(t, 1, node.ReplyCount, "reply_count counts direct children only")

	flat := node.Replies
	require.Len(t, flat, 4, "depths 5, 6, 6 and 7 hang off the anchor")
	assert.Equal(t, side.ID, flat[0].ID, "flattened replies follow the thread order")
	for _, f := range flat {
		assert.Equal(t, 5, f.DisplayDepth)
		assert.GreaterOrEqual(t, f.Depth, 5)
		require.NotNil(t, f.ReplyTo)
		assert.Equal(t, *f.ParentID, f.ReplyTo.ParentID)
		assert.Equal(t, authors[*f.ParentID].Username, f.ReplyTo.ParentUsername, "labels name the parent's author")
		assert.NotEqual(t, f.User.Username, f.ReplyTo.ParentUsername)
		assert.Empty(t, f.Replies)
	}
	assert.Equal(t, levels[4].ID, flat[0].ReplyTo.ParentID)
	assert.Equal(t, "author5", flat[0].ReplyTo.ParentUsername)
}

func TestThreadService_FlattenedAnchorLimit(t *testing.T) {
	t.Parallel()

	st := newStack(t, testThreadSettings(config.DisplayModeFlattened))
	loads := recordChildLoads(st)
	ctx := context.Background()
	u := testutil.CreateUser(t, st.db, "u", false)
	article := testutil.CreateArticle(t, st.db)
	top := testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "top", 0)
	anchor := chain(t, st, article.ID, u.ID, top, 4)[3]

	// 60 flattened children plus 150 grandchildren: 210 descendants in all.
	children := make([]*models.Comment, 0, 60)
	for i := 0; i < 60; i++ {
		children = append(children, testutil.CreateComment(t, st.db, article.ID, u.ID, anchor, "child", i))
	}
	score := 100
	for _, c := range children[:3] {
		for j := 0; j < 50; j++ {
			testutil.CreateComment(t, st.db, article.ID, u.ID, c, "grandchild", score)
			score++
		}
	}

	page, err := st.threads.ListTopLevel(ctx, article.ID, nil, 1)
	require.NoError(t, err)

	node := page.Results[0]
	for i := 0; i < 4; i++ {
		require.Len(t, node.Replies, 1)
		node = node.Replies[0]
	}
	require.Equal(t, anchor.ID, node.ID)
	assert.Equal(t, 60, node.ReplyCount)

	flat := node.Replies
	require.Len(t, flat, FlattenedAnchorLimit)
	assert.Equal(t, 249, flat[0].CachedScore)
	assert.Equal(t, 210, flat[39].CachedScore, "the best grandchildren fill what the children leave")
	assert.Equal(t, 59, flat[40].CachedScore)
	assert.Equal(t, 0, flat[99].CachedScore)
	for i := 1; i < len(flat); i++ {
		assert.GreaterOrEqual(t, flat[i-1].CachedScore, flat[i].CachedScore)
	}

	// 4 nested rows, 60 children, then 40 per grandparent once 40 slots remain.
	assert.Equal(t, 60, loads.maxPerCall)
	assert.Equal(t, 4+60+3*40, loads.rows)
}

type fixedMode string

func (m fixedMode) DisplayMode(string, uint) string { return string(m) }

func TestThreadService_ModeSelector(t *testing.T) {
	t.Parallel()

	st := newStack(t, testThreadSettings(config.DisplayModeFlattened))
	st.threads.modes = fixedMode(config.DisplayModeNested)
	ctx := context.Background()
	u := testutil.CreateUser(t, st.db, "u", false)
	article := testutil.CreateArticle(t, st.db)
	top := testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "top", 0)
	chain(t, st, article.ID, u.ID, top, 6)

	page, err := st.threads.ListTopLevel(ctx, article.ID, viewerOf(u), 1)
	require.NoError(t, err)
	node := page.Results[0]
	depth := 0
	for len(node.Replies) > 0 {
		require.Len(t, node.Replies, 1)
		node = node.Replies[0]
		depth++
	}
	assert.Equal(t, 6, depth, "nested mode keeps indenting")
	assert.Nil(t, node.ReplyTo)
}

func TestThreadService_VisibilityAndPermissions(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, st.db, "author", false)
	other := testutil.CreateUser(t, st.db, "other", false)
	staff := testutil.CreateUser(t, st.db, "mod", true)
	article := testutil.CreateArticle(t, st.db)

	live := testutil.CreateComment(t, st.db, article.ID, author.ID, nil, "**live**", 2)
	deleted := testutil.CreateComment(t, st.db, article.ID, author.ID, nil, "deleted text", 1)
	removed := testutil.CreateComment(t, st.db, article.ID, author.ID, nil, "removed text", 0)
	_, err := st.comments.SoftDelete(ctx, deleted.ID, author.ID)
	require.NoError(t, err)
	_, err = st.comments.Moderate(ctx, removed.ID, viewerOf(staff), true)
	require.NoError(t, err)
	_, err = st.ledger.SetVote(ctx, live.ID, other.ID, intp(-1))
	require.NoError(t, err)

	byID := func(v *Viewer) map[uint]*CommentView {
		page, err := st.threads.ListTopLevel(ctx, article.ID, v, 1)
		require.NoError(t, err)
		out := make(map[uint]*CommentView)
		for _, c := range page.Results {
			out[c.ID] = c
		}
		return out
	}

	t.Run("anonymous", func(t *testing.T) {
		views := byID(nil)
		assert.Equal(t, "**live**", views[live.ID].Content)
		assert.Contains(t, views[live.ID].ContentHTML, "<strong>live</strong>")
		assert.Equal(t, models.DeletedPlaceholder, views[deleted.ID].Content)
		assert.Equal(t, models.RemovedPlaceholder, views[removed.ID].Content)
		assert.NotContains(t, views[removed.ID].ContentHTML, "removed text")
		assert.False(t, views[removed.ID].Removed)
		assert.Nil(t, views[live.ID].UserVote)
		for _, v := range views {
			assert.False(t, v.CanEdit || v.CanDelete || v.CanModerate)
		}
	})

	t.Run("author", func(t *testing.T) {
		views := byID(viewerOf(author))
		assert.Equal(t, models.DeletedPlaceholder, views[deleted.ID].Content, "authors see the marker too")
		assert.True(t, views[live.ID].CanEdit)
		assert.True(t, views[live.ID].CanDelete)
		assert.False(t, views[live.ID].CanModerate)
		assert.False(t, views[deleted.ID].CanEdit)
		assert.False(t, views[deleted.ID].CanDelete)
		assert.False(t, views[removed.ID].CanEdit)
		assert.True(t, views[removed.ID].CanDelete)
		assert.Equal(t, author.Username, views[live.ID].User.Username)
	})

	t.Run("voter", func(t *testing.T) {
		views := byID(viewerOf(other))
		assert.Equal(t, intp(-1), views[live.ID].UserVote)
		assert.Equal(t, 1, views[live.ID].CachedScore)
	})

	t.Run("staff", func(t *testing.T) {
		views := byID(viewerOf(staff))
		assert.Equal(t, "removed text", views[removed.ID].Content)
		assert.True(t, views[removed.ID].Removed)
		assert.Equal(t, models.DeletedPlaceholder, views[deleted.ID].Content)
		assert.True(t, views[live.ID].CanModerate)
	})
}

func TestThreadService_Replies(t *testing.T) {
	t.Parallel()

	st := newNestedStack(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, st.db, "u", false)
	article := testutil.CreateArticle(t, st.db)
	top := testutil.CreateComment(t, st.db, article.ID, u.ID, nil, "top", 0)
	var first *models.Comment
	for i := 0; i < 12; i++ {
		c := testutil.CreateComment(t, st.db, article.ID, u.ID, top, "reply", 12-i)
		if i == 0 {
			first = c
		}
	}
	testutil.CreateComment(t, st.db, article.ID, u.ID, first, "grandchild", 0)

	page, err := st.threads.Replies(ctx, top.ID, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.NumPages)
	require.Len(t, page.Results, 10)
	assert.Equal(t, first.ID, page.Results[0].ID)
	assert.Equal(t, 1, page.Results[0].ReplyCount)
	assert.Empty(t, page.Results[0].Replies)

	second, err := st.threads.Replies(ctx, top.ID, nil, 2)
	require.NoError(t, err)
	assert.Len(t, second.Results, 2)

	_, err = st.threads.Replies(ctx, 9999, nil, 1)
	assertAppErrorCode(t, err, models.CodeNotFound)
}
