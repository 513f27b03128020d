package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"newsadvance/internal/models"
	"newsadvance/internal/observability"
	"newsadvance/internal/service"
)

// Event type constants prevent typos in event names.
const (
	EventCommentCreated     = "comment_created"
	EventCommentUpdated     = "comment_updated"
	EventCommentDeleted     = "comment_deleted"
	EventCommentModerated   = "comment_moderated"
	EventCommentVoteChanged = "comment_vote_changed"
	EventCommentReply       = "comment_reply"
)

type event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func encodeEvent(eventType string, payload interface{}) (string, bool) {
	raw, err := json.Marshal(event{Type: eventType, Payload: payload})
	if err != nil {
		observability.Logger.Error("failed to marshal event",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return string(raw), true
}

// defaultPublishTimeout bounds how long a mutation waits on Redis to publish
// its event.
const defaultPublishTimeout = 250 * time.Millisecond

func (s *Server) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
}

// publishArticleEvent fans an event out to everyone watching the article.
// With Redis, delivery goes through pub/sub so every instance sees it.
// Failures are logged and never reach the caller.
func (s *Server) publishArticleEvent(ctx context.Context, articleID uint, eventType string, payload interface{}) {
	message, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}
	if s.notifier == nil {
		s.hub.BroadcastArticle(articleID, message)
		return
	}
	pubCtx, cancel := s.publishContext(ctx)
	defer cancel()
	if err := s.notifier.PublishArticle(pubCtx, articleID, message); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish article event",
			slog.String("type", eventType),
			slog.Uint64("article_id", uint64(articleID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload interface{}) {
	message, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}
	if s.notifier == nil {
		s.hub.BroadcastUser(userID, message)
		return
	}
	pubCtx, cancel := s.publishContext(ctx)
	defer cancel()
	if err := s.notifier.PublishUser(pubCtx, userID, message); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish user event",
			slog.String("type", eventType),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}

// publishCommentEvent broadcasts the comment as an anonymous reader sees it,
// so hidden content never reaches the channel.
func (s *Server) publishCommentEvent(ctx context.Context, eventType string, comment *models.Comment) {
	view, err := s.threads.View(ctx, comment, nil)
	if err != nil {
		observability.Logger.WarnContext(ctx, "failed to render event comment",
			slog.Uint64("comment_id", uint64(comment.ID)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.publishArticleEvent(ctx, comment.ArticleID, eventType, map[string]interface{}{
		"article_id": comment.ArticleID,
		"comment":    view,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) publishVoteEvent(ctx context.Context, commentID uint, result *service.VoteResult) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return
	}
	s.publishArticleEvent(ctx, comment.ArticleID, EventCommentVoteChanged, map[string]interface{}{
		"article_id": comment.ArticleID,
		"comment_id": commentID,
		"score":      result.Score,
	})
}

// NotifyReply tells a parent's author about a new reply.
func (s *Server) NotifyReply(ctx context.Context, recipientID uint, reply *models.Comment) {
	payload := map[string]interface{}{
		"article_id": reply.ArticleID,
		"comment_id": reply.ID,
		"parent_id":  reply.ParentID,
		"from":       reply.UserID,
	}
	if reply.User.ID != 0 {
		payload["from_username"] = reply.User.Username
	}
	s.publishUserEvent(ctx, recipientID, EventCommentReply, payload)
}
