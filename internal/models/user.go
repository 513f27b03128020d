// Package models contains the persisted entities of the comments service.
package models

import "time"

// User is the local projection of an account owned by the auth collaborator.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;size:254;not null" json:"-"`
	Password  string    `gorm:"not null" json:"-"`
	Avatar    string    `json:"avatar,omitempty"`
	IsStaff   bool      `gorm:"default:false;not null" json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSummary is the author display info attached to serialized comments.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Summary returns the display projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// UserPreferences holds per-user comment settings.
type UserPreferences struct {
	UserID               uint      `gorm:"primaryKey;autoIncrement:false" json:"-"`
	ShowComments         bool      `gorm:"default:true;not null" json:"show_comments"`
	NotifyOnCommentReply bool      `gorm:"default:true;not null" json:"notify_on_comment_reply"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultPreferences returns the settings applied when a user has no stored row.
func DefaultPreferences(userID uint) UserPreferences {
	return UserPreferences{UserID: userID, ShowComments: true, NotifyOnCommentReply: true}
}
