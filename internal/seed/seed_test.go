package seed

import (
	"context"
	"strings"
	"testing"

	"newsadvance/internal/models"
	"newsadvance/internal/repository"
	"newsadvance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandom_ScoresMatchLedger(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	sum, err := Random(ctx, db, Options{
		Users:      6,
		Articles:   2,
		TopLevel:   3,
		MaxDepth:   4,
		MaxReplies: 2,
		VoteRate:   50,
		RandSeed:   42,
		SkipBcrypt: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Users)
	assert.Equal(t, 2, sum.Articles)
	assert.GreaterOrEqual(t, sum.Comments, 6)

	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&count).Error)
	assert.EqualValues(t, sum.Comments, count)

	drift, err := repository.NewVoteRepository(db).ListScoreDrift(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	var deepest int
	require.NoError(t, db.Model(&models.Comment{}).Select("COALESCE(MAX(depth), 0)").Scan(&deepest).Error)
	assert.Less(t, deepest, 4)
}

func TestRandom_Clean(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	opts := Options{Users: 2, Articles: 1, TopLevel: 1, MaxDepth: 1, RandSeed: 7, SkipBcrypt: true}

	_, err := Random(ctx, db, opts)
	require.NoError(t, err)
	opts.Clean = true
	_, err = Random(ctx, db, opts)
	require.NoError(t, err)

	var users int64
	db.Model(&models.User{}).Count(&users)
	assert.EqualValues(t, 2, users)
}

func TestApplyFixture(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	fx, err := LoadFixtureFile("testdata/thread.yml")
	require.NoError(t, err)

	sum, err := ApplyFixture(ctx, db, fx, Options{SkipBcrypt: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Users: 3, Articles: 1, Comments: 5, Votes: 3}, sum)

	var root models.Comment
	require.NoError(t, db.Where("content LIKE ?", "Markets%").Take(&root).Error)
	assert.Equal(t, 2, root.CachedScore)

	var leaf models.Comment
	require.NoError(t, db.Where("content = ?", "Fair, the 2y moved.").Take(&leaf).Error)
	assert.Equal(t, 2, leaf.Depth)

	var removed models.Comment
	require.NoError(t, db.Where("content = ?", "Spam spam spam").Take(&removed).Error)
	assert.True(t, removed.IsRemovedModerator)

	var carol models.User
	require.NoError(t, db.Where("username = ?", "carol").Take(&carol).Error)
	assert.True(t, carol.IsStaff)
}

func TestDecodeFixture_Errors(t *testing.T) {
	_, err := DecodeFixture(strings.NewReader("users:\n  - username: a\n    admin: true\n"))
	assert.Error(t, err, "unknown keys are rejected")

	fx, err := DecodeFixture(strings.NewReader(`
users: [{username: alice}]
articles:
  - title: T
    comments: [{author: mallory, content: hi}]
`))
	require.NoError(t, err)
	_, err = ApplyFixture(context.Background(), testutil.NewDB(t), fx, Options{SkipBcrypt: true})
	assert.ErrorContains(t, err, "unknown user")
}
