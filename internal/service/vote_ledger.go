package service

import (
	"context"
	"log/slog"

	"newsadvance/internal/database"
	"newsadvance/internal/models"
	"newsadvance/internal/observability"
	"newsadvance/internal/repository"
	"newsadvance/internal/validation"
)

// Vote transitions.
const (
	TransitionCreate  = "create"
	TransitionFlip    = "flip"
	TransitionRetract = "retract"
	TransitionNoop    = "noop"
)

// VoteResult is what a voter sees after a ledger write.
type VoteResult struct {
	Score    int  `json:"score"`
	UserVote *int `json:"user_vote"`
}

// VoteLedger keeps one vote per (comment, user) and comments.cached_score equal
// to the sum of their votes.
type VoteLedger struct {
	votes repository.VoteRepository
}

func NewVoteLedger(votes repository.VoteRepository) *VoteLedger {
	return &VoteLedger{votes: votes}
}

// planVote maps the stored vote and the requested one to a row mutation and
// score delta.
//
//	none -> v    create   +v
//	old  -> nil  delete   -old
//	old  -> v    update   v-old (±2)
//	old  -> old  none     0
//	nil  -> nil  none     0
func planVote(old, value *int) (repository.VotePlan, string) {
	switch {
	case old == nil && value == nil:
		return repository.VotePlan{}, TransitionNoop
	case old == nil:
		v := *value
		return repository.VotePlan{New: &v, Delta: v}, TransitionCreate
	case value == nil:
		return repository.VotePlan{Delta: -*old}, TransitionRetract
	case *old == *value:
		v := *old
		return repository.VotePlan{New: &v}, TransitionNoop
	default:
		v := *value
		return repository.VotePlan{New: &v, Delta: v - *old}, TransitionFlip
	}
}

// SetVote records value (1, -1, or nil to retract) for userID on commentID and
// returns the comment's new score. A failed attempt leaves both the vote and
// the score untouched.
func (l *VoteLedger) SetVote(ctx context.Context, commentID, userID uint, value *int) (*VoteResult, error) {
	if value != nil {
		if err := validation.VoteValue(*value); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	span, ctx := observability.NewSpan(ctx, "vote.set")
	defer span.End()

	var transition string
	out, err := database.Operation(ctx, func(ctx context.Context) (repository.VoteOutcome, error) {
		return l.votes.Apply(ctx, commentID, userID, func(old *int) (repository.VotePlan, error) {
			plan, t := planVote(old, value)
			transition = t
			return plan, nil
		})
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	observability.VoteTransitions.WithLabelValues(transition).Inc()
	observability.Logger.DebugContext(ctx, "vote applied",
		slog.Uint64("comment_id", uint64(commentID)),
		slog.String("transition", transition),
		slog.Int("delta", out.Delta),
		slog.Int("score", out.Score),
	)
	return &VoteResult{Score: out.Score, UserVote: out.New}, nil
}

// Recount resets one comment's cached score to the sum of its votes.
func (l *VoteLedger) Recount(ctx context.Context, commentID uint) (int, error) {
	return l.votes.RepairScore(ctx, commentID)
}

// VerifyAll lists comments whose cached score disagrees with their votes and,
// when repair is set, fixes each of them.
func (l *VoteLedger) VerifyAll(ctx context.Context, repair bool) ([]repository.ScoreDrift, error) {
	drift, err := l.votes.ListScoreDrift(ctx)
	if err != nil {
		return nil, err
	}
	if !repair {
		return drift, nil
	}
	for _, d := range drift {
		if _, err := l.votes.RepairScore(ctx, d.CommentID); err != nil {
			return drift, err
		}
		observability.Logger.WarnContext(ctx, "cached score repaired",
			slog.Uint64("comment_id", uint64(d.CommentID)),
			slog.Int("cached", d.Cached),
			slog.Int("actual", d.Actual),
		)
	}
	return drift, nil
}
