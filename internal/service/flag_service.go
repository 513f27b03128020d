package service

import (
	"context"
	"strings"

	"newsadvance/internal/models"
	"newsadvance/internal/repository"
	"newsadvance/internal/validation"
)

type FlagService struct {
	flagRepo    repository.FlagRepository
	commentRepo repository.CommentRepository
}

type FlagInput struct {
	CommentID uint
	UserID    uint
	Reason    string
	Note      string
}

func NewFlagService(flagRepo repository.FlagRepository, commentRepo repository.CommentRepository) *FlagService {
	return &FlagService{flagRepo: flagRepo, commentRepo: commentRepo}
}

// Flag reports a comment. Flagging again updates the reason and note and
// reopens a resolved report. Flags never change visibility.
func (s *FlagService) Flag(ctx context.Context, in FlagInput) (*models.CommentFlag, bool, error) {
	reason := strings.ToLower(strings.TrimSpace(in.Reason))
	if reason == "" {
		reason = models.FlagReasonOther
	}
	note := strings.TrimSpace(in.Note)
	if err := validation.Flag(reason, note); err != nil {
		return nil, false, models.NewValidationError(err.Error())
	}
	if _, err := s.commentRepo.GetByID(ctx, in.CommentID); err != nil {
		return nil, false, err
	}

	flag := &models.CommentFlag{CommentID: in.CommentID, UserID: in.UserID, Reason: reason, Note: note}
	created, err := s.flagRepo.Upsert(ctx, flag)
	if err != nil {
		return nil, false, err
	}
	return flag, created, nil
}

// ListOpen pages unresolved flags, oldest first. Staff only.
func (s *FlagService) ListOpen(ctx context.Context, viewer *Viewer, page, pageSize int) (flags []*models.CommentFlag, clampedPage, numPages int, err error) {
	if !viewer.staff() {
		return nil, 0, 0, models.NewPermissionDeniedError("Moderator privileges required")
	}
	total, err := s.flagRepo.CountOpen(ctx)
	if err != nil {
		return nil, 0, 0, err
	}
	clampedPage, numPages, offset := pageWindow(page, total, pageSize)
	flags, err = s.flagRepo.ListOpen(ctx, offset, pageSize)
	if err != nil {
		return nil, 0, 0, err
	}
	return flags, clampedPage, numPages, nil
}

// Resolve closes a flag. Staff only.
func (s *FlagService) Resolve(ctx context.Context, viewer *Viewer, flagID uint) error {
	if !viewer.staff() {
		return models.NewPermissionDeniedError("Moderator privileges required")
	}
	return s.flagRepo.Resolve(ctx, flagID)
}
