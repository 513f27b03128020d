package service

import (
	"context"
	"log/slog"

	"newsadvance/internal/models"
	"newsadvance/internal/observability"
)

// Action classes throttled independently per user.
const (
	ActionCreate   = "comment_create"
	ActionReply    = "comment_reply"
	ActionEdit     = "comment_edit"
	ActionDelete   = "comment_delete"
	ActionModerate = "comment_moderate"
	ActionFlag     = "comment_flag"
	ActionVote     = "comment_vote"
)

// Cooldown admits one call per (action, user) per window.
type Cooldown interface {
	Allow(ctx context.Context, action string, userID uint) (bool, error)
}

// Gate is the only way mutations reach the comment store, the vote ledger and
// the flag queue. It authenticates and throttles; ownership and staff checks
// stay with the services.
type Gate struct {
	cooldown Cooldown
	comments *CommentService
	votes    *VoteLedger
	flags    *FlagService
}

func NewGate(cooldown Cooldown, comments *CommentService, votes *VoteLedger, flags *FlagService) *Gate {
	return &Gate{cooldown: cooldown, comments: comments, votes: votes, flags: flags}
}

// admit runs the authentication and cooldown checks. A rejected call touches
// no state.
func (g *Gate) admit(ctx context.Context, actor *Viewer, action string) error {
	if !actor.Authenticated() {
		return models.NewUnauthenticatedError()
	}
	if g.cooldown == nil {
		return nil
	}
	ok, err := g.cooldown.Allow(ctx, action, actor.UserID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !ok {
		observability.RateLimitRejections.WithLabelValues(action).Inc()
		observability.Logger.InfoContext(ctx, "mutation throttled",
			slog.String("action", action),
			slog.Uint64("user_id", uint64(actor.UserID)),
		)
		return models.NewRateLimitedError()
	}
	return nil
}

func (g *Gate) CreateComment(ctx context.Context, actor *Viewer, articleID uint, content string) (*models.Comment, error) {
	if err := g.admit(ctx, actor, ActionCreate); err != nil {
		return nil, err
	}
	return g.comments.Create(ctx, CreateCommentInput{ArticleID: articleID, UserID: actor.UserID, Content: content})
}

func (g *Gate) Reply(ctx context.Context, actor *Viewer, parentID uint, content string) (*models.Comment, error) {
	if err := g.admit(ctx, actor, ActionReply); err != nil {
		return nil, err
	}
	return g.comments.Create(ctx, CreateCommentInput{ParentID: &parentID, UserID: actor.UserID, Content: content})
}

func (g *Gate) Edit(ctx context.Context, actor *Viewer, commentID uint, content string) (*models.Comment, error) {
	if err := g.admit(ctx, actor, ActionEdit); err != nil {
		return nil, err
	}
	return g.comments.Edit(ctx, EditCommentInput{CommentID: commentID, UserID: actor.UserID, Content: content})
}

func (g *Gate) Delete(ctx context.Context, actor *Viewer, commentID uint) (*models.Comment, error) {
	if err := g.admit(ctx, actor, ActionDelete); err != nil {
		return nil, err
	}
	return g.comments.SoftDelete(ctx, commentID, actor.UserID)
}

func (g *Gate) Moderate(ctx context.Context, actor *Viewer, commentID uint, remove bool) (*models.Comment, error) {
	if err := g.admit(ctx, actor, ActionModerate); err != nil {
		return nil, err
	}
	return g.comments.Moderate(ctx, commentID, actor, remove)
}

func (g *Gate) Flag(ctx context.Context, actor *Viewer, commentID uint, reason, note string) (*models.CommentFlag, error) {
	if err := g.admit(ctx, actor, ActionFlag); err != nil {
		return nil, err
	}
	flag, _, err := g.flags.Flag(ctx, FlagInput{CommentID: commentID, UserID: actor.UserID, Reason: reason, Note: note})
	return flag, err
}

// Vote sets (value 1 or -1) or retracts (nil) the actor's vote.
func (g *Gate) Vote(ctx context.Context, actor *Viewer, commentID uint, value *int) (*VoteResult, error) {
	if err := g.admit(ctx, actor, ActionVote); err != nil {
		return nil, err
	}
	return g.votes.SetVote(ctx, commentID, actor.UserID, value)
}
