package models

import "time"

// Flag reasons.
const (
	FlagReasonSpam  = "spam"
	FlagReasonAbuse = "abuse"
	FlagReasonHate  = "hate"
	FlagReasonOther = "other"
)

// FlagNoteMaxLength bounds CommentFlag.Note.
const FlagNoteMaxLength = 255

// CommentFlag is a user's moderation report on a comment. It never changes
// visibility by itself.
type CommentFlag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_flag_comment_user" json:"comment_id"`
	Comment   Comment   `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_flag_comment_user" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"reporter,omitempty"`
	Reason    string    `gorm:"size:20;not null;default:other" json:"reason"`
	Note      string    `gorm:"size:255" json:"note,omitempty"`
	Resolved  bool      `gorm:"not null;default:false;index" json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidFlagReason reports whether reason is one of the accepted reasons.
func ValidFlagReason(reason string) bool {
	switch reason {
	case FlagReasonSpam, FlagReasonAbuse, FlagReasonHate, FlagReasonOther:
		return true
	}
	return false
}
