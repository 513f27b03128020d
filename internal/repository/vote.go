package repository

import (
	"context"
	"errors"
	"slices"

	"newsadvance/internal/models"
	"newsadvance/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VotePlan is what the ledger decided for a (comment, user) pair given the
// vote currently stored.
type VotePlan struct {
	New   *int
	Delta int
}

// VoteOutcome reports an applied plan and the comment's resulting score.
type VoteOutcome struct {
	Old   *int
	New   *int
	Delta int
	Score int
}

// ScoreDrift is a comment whose cached score disagrees with its votes.
type ScoreDrift struct {
	CommentID uint
	Cached    int
	Actual    int
}

// VoteRepository defines persistence operations for the vote ledger.
type VoteRepository interface {
	// Apply runs plan against the stored vote inside one transaction that
	// holds the comment row lock, and adjusts cached_score by the plan's delta.
	Apply(ctx context.Context, commentID, userID uint, plan func(old *int) (VotePlan, error)) (VoteOutcome, error)
	GetValues(ctx context.Context, userID uint, commentIDs []uint) (map[uint]int, error)
	SumVotes(ctx context.Context, commentID uint) (int, error)
	ListScoreDrift(ctx context.Context) ([]ScoreDrift, error)
	RepairScore(ctx context.Context, commentID uint) (int, error)
}

type voteRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db, log: observability.NewRepoLogger("comment_votes")}
}

func (r *voteRepository) Apply(ctx context.Context, commentID, userID uint, plan func(old *int) (VotePlan, error)) (VoteOutcome, error) {
	defer observability.TrackQuery("apply", "comment_votes")()

	var out VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes concurrent ledger writes on this comment.
		var comment models.Comment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "cached_score").
			First(&comment, commentID).Error
		if err != nil {
			return mapErr(err, "Comment", commentID)
		}

		var existing models.CommentVote
		found := true
		err = tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			return err
		}

		var old *int
		if found {
			v := existing.Value
			old = &v
		}

		p, err := plan(old)
		if err != nil {
			return err
		}

		switch {
		case old == nil && p.New != nil:
			vote := models.CommentVote{CommentID: commentID, UserID: userID, Value: *p.New}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		case old != nil && p.New == nil:
			if err := tx.Delete(&models.CommentVote{}, existing.ID).Error; err != nil {
				return err
			}
		case old != nil && p.New != nil && *old != *p.New:
			if err := tx.Model(&existing).Update("value", *p.New).Error; err != nil {
				return err
			}
		}

		score := comment.CachedScore
		if p.Delta != 0 {
			err := tx.Model(&models.Comment{}).Where("id = ?", commentID).
				UpdateColumn("cached_score", gorm.Expr("cached_score + ?", p.Delta)).Error
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Comment{}).Select("cached_score").Where("id = ?", commentID).Scan(&score).Error; err != nil {
				return err
			}
		}

		out = VoteOutcome{Old: old, New: p.New, Delta: p.Delta, Score: score}
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "apply")
		return VoteOutcome{}, mapErr(err, "Comment", commentID)
	}

	r.log.LogUpdate(ctx, map[string]interface{}{
		"comment_id": commentID,
		"delta":      out.Delta,
		"score":      out.Score,
	})
	return out, nil
}

// GetValues returns userID's vote per comment for the given comments.
func (r *voteRepository) GetValues(ctx context.Context, userID uint, commentIDs []uint) (map[uint]int, error) {
	values := make(map[uint]int, len(commentIDs))
	if userID == 0 || len(commentIDs) == 0 {
		return values, nil
	}

	for batch := range slices.Chunk(commentIDs, parentBatchSize) {
		var votes []models.CommentVote
		err := r.db.WithContext(ctx).
			Select("comment_id", "value").
			Where("user_id = ? AND comment_id IN ?", userID, batch).
			Find(&votes).Error
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		for _, v := range votes {
			values[v.CommentID] = v.Value
		}
	}
	return values, nil
}

// SumVotes recomputes a comment's score from the ledger. Never used on the
// read path.
func (r *voteRepository) SumVotes(ctx context.Context, commentID uint) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&models.CommentVote{}).
		Select("COALESCE(SUM(value), 0)").
		Where("comment_id = ?", commentID).
		Scan(&sum).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return sum, nil
}

func (r *voteRepository) ListScoreDrift(ctx context.Context) ([]ScoreDrift, error) {
	var drift []ScoreDrift
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id AS comment_id, c.cached_score AS cached, COALESCE(SUM(v.value), 0) AS actual
		FROM comments c
		LEFT JOIN comment_votes v ON v.comment_id = c.id
		GROUP BY c.id, c.cached_score
		HAVING c.cached_score <> COALESCE(SUM(v.value), 0)
		ORDER BY c.id`).Scan(&drift).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return drift, nil
}

// RepairScore resets cached_score to the ledger sum under the row lock.
func (r *voteRepository) RepairScore(ctx context.Context, commentID uint) (int, error) {
	var score int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&comment, commentID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CommentVote{}).Select("COALESCE(SUM(value), 0)").
			Where("comment_id = ?", commentID).Scan(&score).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("id = ?", commentID).
			UpdateColumn("cached_score", score).Error
	})
	if err != nil {
		return 0, mapErr(err, "Comment", commentID)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"comment_id": commentID, "repaired_score": score})
	return score, nil
}
