package models

import "time"

// Vote values. Absence of a row means "no vote".
const (
	VoteUp   = 1
	VoteDown = -1
)

// CommentVote is one user's vote on one comment.
type CommentVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_vote_comment_user" json:"comment_id"`
	Comment   Comment   `gorm:"foreignKey:CommentID" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_vote_comment_user;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Value     int       `gorm:"not null;check:chk_comment_vote_value,value IN (-1, 1)" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidVoteValue reports whether v is an allowed stored vote value.
func ValidVoteValue(v int) bool {
	return v == VoteUp || v == VoteDown
}
