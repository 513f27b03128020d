package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"newsadvance/internal/config"
	"newsadvance/internal/models"
	"newsadvance/internal/repository"
	"newsadvance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// assertAppErrorCode asserts that err is an AppError carrying code.
func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

type recordedReply struct {
	recipient uint
	replyID   uint
}

type replyRecorder struct {
	mu      sync.Mutex
	replies []recordedReply
}

func (r *replyRecorder) NotifyReply(_ context.Context, recipientID uint, reply *models.Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, recordedReply{recipient: recipientID, replyID: reply.ID})
}

func (r *replyRecorder) all() []recordedReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedReply(nil), r.replies...)
}

type stack struct {
	db       *gorm.DB
	comments *CommentService
	ledger   *VoteLedger
	threads  *ThreadService
	flags    *FlagService
	prefs    *PreferencesService
	replies  *replyRecorder
}

func testThreadSettings(mode string) ThreadSettings {
	return ThreadSettings{
		PageSize:        10,
		ReplyWindow:     5,
		RepliesPageSize: 10,
		DisplayMode:     mode,
		FlattenDepth:    5,
		MaxDisplayDepth: 20,
	}
}

func newStack(t *testing.T, settings ThreadSettings) *stack {
	t.Helper()
	db := testutil.NewDB(t)
	commentRepo := repository.NewCommentRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	prefsRepo := repository.NewPreferencesRepository(db)
	rec := &replyRecorder{}
	return &stack{
		db:       db,
		comments: NewCommentService(commentRepo, repository.NewArticleRepository(db), prefsRepo, rec, CommentSettings{MaxLength: 5000}),
		ledger:   NewVoteLedger(voteRepo),
		threads:  NewThreadService(commentRepo, voteRepo, repository.NewUserRepository(db), nil, settings),
		flags:    NewFlagService(repository.NewFlagRepository(db), commentRepo),
		prefs:    NewPreferencesService(prefsRepo),
		replies:  rec,
	}
}

func newNestedStack(t *testing.T) *stack {
	return newStack(t, testThreadSettings(config.DisplayModeNested))
}

func viewerOf(u *models.User) *Viewer {
	return &Viewer{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff}
}

func intp(v int) *int { return &v }
