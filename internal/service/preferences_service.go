package service

import (
	"context"

	"newsadvance/internal/models"
	"newsadvance/internal/repository"
)

type PreferencesService struct {
	repo repository.PreferencesRepository
}

// UpdatePreferencesInput changes only the fields that are set.
type UpdatePreferencesInput struct {
	ShowComments         *bool `json:"show_comments"`
	NotifyOnCommentReply *bool `json:"notify_on_comment_reply"`
}

func NewPreferencesService(repo repository.PreferencesRepository) *PreferencesService {
	return &PreferencesService{repo: repo}
}

func (s *PreferencesService) Get(ctx context.Context, userID uint) (models.UserPreferences, error) {
	return s.repo.Get(ctx, userID)
}

func (s *PreferencesService) Update(ctx context.Context, userID uint, in UpdatePreferencesInput) (models.UserPreferences, error) {
	prefs, err := s.repo.Get(ctx, userID)
	if err != nil {
		return models.UserPreferences{}, err
	}
	if in.ShowComments != nil {
		prefs.ShowComments = *in.ShowComments
	}
	if in.NotifyOnCommentReply != nil {
		prefs.NotifyOnCommentReply = *in.NotifyOnCommentReply
	}
	prefs.UserID = userID
	if err := s.repo.Save(ctx, &prefs); err != nil {
		return models.UserPreferences{}, err
	}
	return prefs, nil
}
