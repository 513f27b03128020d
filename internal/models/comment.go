package models

import "time"

// Placeholder texts substituted for hidden content.
const (
	DeletedPlaceholder = "[deleted]"
	RemovedPlaceholder = "[removed by moderator]"
)

// CommentState is the rendering state derived from the two deletion flags.
type CommentState int

const (
	CommentActive CommentState = iota
	// CommentUserDeleted is permanent and wins over moderator removal.
	CommentUserDeleted
	// CommentModeratorRemoved is reversible by staff.
	CommentModeratorRemoved
)

func (s CommentState) String() string {
	switch s {
	case CommentUserDeleted:
		return "user_deleted"
	case CommentModeratorRemoved:
		return "moderator_removed"
	default:
		return "active"
	}
}

// Comment is a node of an article's comment tree. Rows are never hard-deleted
// so children always keep a resolvable parent.
type Comment struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	ArticleID uint     `gorm:"not null;index:idx_comment_thread,priority:1" json:"article_id"`
	Article   Article  `gorm:"foreignKey:ArticleID" json:"-"`
	UserID    uint     `gorm:"not null;index" json:"user_id"`
	User      User     `gorm:"foreignKey:UserID" json:"user"`
	ParentID  *uint    `gorm:"index;index:idx_comment_thread,priority:2" json:"parent_id"`
	Parent    *Comment `gorm:"foreignKey:ParentID" json:"-"`
	Content   string   `gorm:"type:text;not null" json:"content"`
	// Depth is derived from the parent at insert time and never updated.
	Depth              int        `gorm:"not null;default:0;check:depth >= 0" json:"depth"`
	CachedScore        int        `gorm:"not null;default:0;index;index:idx_comment_thread,priority:3" json:"cached_score"`
	IsEdited           bool       `gorm:"not null;default:false" json:"is_edited"`
	EditedAt           *time.Time `json:"edited_at"`
	IsDeletedByUser    bool       `gorm:"not null;default:false" json:"is_deleted_by_user"`
	IsRemovedModerator bool       `gorm:"not null;default:false" json:"is_removed_moderator"`
	IsApproved         bool       `gorm:"not null;default:true;index" json:"is_approved"`
	CreatedAt          time.Time  `gorm:"index:idx_comment_thread,priority:4" json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// State returns the rendering state of c.
func (c *Comment) State() CommentState {
	switch {
	case c.IsDeletedByUser:
		return CommentUserDeleted
	case c.IsRemovedModerator:
		return CommentModeratorRemoved
	default:
		return CommentActive
	}
}

// IsTopLevel reports whether c has no parent.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil
}

// VisibleContent returns what a viewer may see of c and whether the staff
// "removed" annotation applies.
func (c *Comment) VisibleContent(viewerIsStaff bool) (content string, removedAnnotation bool) {
	switch c.State() {
	case CommentUserDeleted:
		return DeletedPlaceholder, false
	case CommentModeratorRemoved:
		if viewerIsStaff {
			return c.Content, true
		}
		return RemovedPlaceholder, false
	default:
		return c.Content, false
	}
}
