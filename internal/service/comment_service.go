package service

import (
	"context"
	"log/slog"
	"time"

	"newsadvance/internal/config"
	"newsadvance/internal/models"
	"newsadvance/internal/observability"
	"newsadvance/internal/repository"
	"newsadvance/internal/validation"
)

// ReplyNotifier delivers a reply notification to the parent comment's author.
type ReplyNotifier interface {
	NotifyReply(ctx context.Context, recipientID uint, reply *models.Comment)
}

// CommentSettings bounds what the comment store accepts.
type CommentSettings struct {
	MaxLength int
	// MaxReplyDepth caps stored depth; 0 means unlimited.
	MaxReplyDepth int
}

// CommentSettingsFromConfig extracts the comment store settings.
func CommentSettingsFromConfig(cfg *config.Config) CommentSettings {
	return CommentSettings{MaxLength: cfg.CommentMaxLength, MaxReplyDepth: cfg.CommentMaxReplyDepth}
}

type CommentService struct {
	commentRepo repository.CommentRepository
	articleRepo repository.ArticleRepository
	prefsRepo   repository.PreferencesRepository
	notifier    ReplyNotifier
	settings    CommentSettings
	now         func() time.Time
}

type CreateCommentInput struct {
	ArticleID uint
	UserID    uint
	ParentID  *uint
	Content   string
}

type EditCommentInput struct {
	CommentID uint
	UserID    uint
	Content   string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	articleRepo repository.ArticleRepository,
	prefsRepo repository.PreferencesRepository,
	notifier ReplyNotifier,
	settings CommentSettings,
) *CommentService {
	if settings.MaxLength <= 0 {
		settings.MaxLength = 5000
	}
	return &CommentService{
		commentRepo: commentRepo,
		articleRepo: articleRepo,
		prefsRepo:   prefsRepo,
		notifier:    notifier,
		settings:    settings,
		now:         time.Now,
	}
}

// Create stores a top-level comment or, with ParentID set, a reply. Replies to
// deleted or removed parents are accepted.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validation.CommentContent(in.Content, s.settings.MaxLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var parent *models.Comment
	articleID := in.ArticleID
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if articleID == 0 {
			articleID = parent.ArticleID
		}
		if parent.ArticleID != articleID {
			return nil, models.NewValidationError("Parent comment belongs to a different article")
		}
	}

	ok, err := s.articleRepo.Exists(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Article", articleID)
	}

	comment := &models.Comment{
		ArticleID:  articleID,
		UserID:     in.UserID,
		Content:    content,
		IsApproved: true,
	}
	kind := "top_level"
	if parent != nil {
		comment.ParentID = &parent.ID
		comment.Depth = parent.Depth + 1
		kind = "reply"
		if s.settings.MaxReplyDepth > 0 && comment.Depth > s.settings.MaxReplyDepth {
			return nil, models.NewValidationError("Maximum reply depth reached")
		}
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	observability.CommentsCreated.WithLabelValues(kind).Inc()

	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		s.notifyParentAuthor(ctx, parent, created)
	}
	return created, nil
}

func (s *CommentService) notifyParentAuthor(ctx context.Context, parent, reply *models.Comment) {
	if s.notifier == nil || parent.UserID == reply.UserID {
		return
	}
	if s.prefsRepo != nil {
		prefs, err := s.prefsRepo.Get(ctx, parent.UserID)
		if err != nil {
			observability.Logger.WarnContext(ctx, "reply notification skipped",
				slog.Uint64("comment_id", uint64(reply.ID)),
				slog.String("error", err.Error()),
			)
			return
		}
		if !prefs.NotifyOnCommentReply {
			return
		}
	}
	s.notifier.NotifyReply(ctx, parent.UserID, reply)
}

// Edit replaces the content of the caller's own live comment.
func (s *CommentService) Edit(ctx context.Context, in EditCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewPermissionDeniedError("You can only edit your own comments")
	}
	if comment.IsRemovedModerator {
		return nil, models.NewPermissionDeniedError("This comment was removed by a moderator")
	}
	if comment.IsDeletedByUser {
		return nil, models.NewPermissionDeniedError("This comment was deleted")
	}

	content, err := validation.CommentContent(in.Content, s.settings.MaxLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	now := s.now()
	err = s.commentRepo.UpdateFields(ctx, comment.ID, map[string]interface{}{
		"content":   content,
		"is_edited": true,
		"edited_at": now,
	})
	if err != nil {
		return nil, err
	}
	observability.CommentMutations.WithLabelValues("edit").Inc()
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// SoftDelete marks the caller's own comment deleted. Deleting twice is a no-op.
func (s *CommentService) SoftDelete(ctx context.Context, commentID, userID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewPermissionDeniedError("You can only delete your own comments")
	}
	if comment.IsDeletedByUser {
		return comment, nil
	}

	if err := s.commentRepo.UpdateFields(ctx, commentID, map[string]interface{}{"is_deleted_by_user": true}); err != nil {
		return nil, err
	}
	observability.CommentMutations.WithLabelValues("delete").Inc()
	comment.IsDeletedByUser = true
	return comment, nil
}

// Moderate removes or restores a comment. Staff only.
func (s *CommentService) Moderate(ctx context.Context, commentID uint, actor *Viewer, remove bool) (*models.Comment, error) {
	if !actor.staff() {
		return nil, models.NewPermissionDeniedError("Moderator privileges required")
	}
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.IsRemovedModerator != remove {
		if err := s.commentRepo.UpdateFields(ctx, commentID, map[string]interface{}{"is_removed_moderator": remove}); err != nil {
			return nil, err
		}
		comment.IsRemovedModerator = remove
	}

	action := "restore"
	if remove {
		action = "remove"
	}
	observability.CommentMutations.WithLabelValues(action).Inc()
	observability.Logger.InfoContext(ctx, "comment moderated",
		slog.Uint64("comment_id", uint64(commentID)),
		slog.Uint64("moderator_id", uint64(actor.UserID)),
		slog.Bool("removed", remove),
	)
	return comment, nil
}

func (s *CommentService) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.commentRepo.GetByID(ctx, id)
}

// GetChildren pages the direct children of a comment in thread order.
func (s *CommentService) GetChildren(ctx context.Context, commentID uint, page, pageSize int) (children []*models.Comment, clampedPage, numPages int, err error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, 0, 0, err
	}
	total, err := s.commentRepo.CountChildren(ctx, commentID)
	if err != nil {
		return nil, 0, 0, err
	}
	clampedPage, numPages, offset := pageWindow(page, total, pageSize)
	children, err = s.commentRepo.ListChildren(ctx, commentID, offset, pageSize)
	if err != nil {
		return nil, 0, 0, err
	}
	return children, clampedPage, numPages, nil
}

// ListByUser pages a user's comment history, newest first.
func (s *CommentService) ListByUser(ctx context.Context, userID uint, page, pageSize int) (comments []*models.Comment, clampedPage, numPages int, err error) {
	total, err := s.commentRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	clampedPage, numPages, offset := pageWindow(page, total, pageSize)
	comments, err = s.commentRepo.ListByUser(ctx, userID, offset, pageSize)
	if err != nil {
		return nil, 0, 0, err
	}
	return comments, clampedPage, numPages, nil
}
