package service

import (
	"time"

	"newsadvance/internal/markup"
	"newsadvance/internal/models"
)

// ReplyTo points a flattened reply at the comment it answers.
type ReplyTo struct {
	ParentID       uint   `json:"parent_id"`
	ParentUsername string `json:"parent_username"`
}

// CommentView is a comment as serialized for one viewer.
type CommentView struct {
	ID                 uint               `json:"id"`
	ArticleID          uint               `json:"article_id"`
	User               models.UserSummary `json:"user"`
	ParentID           *uint              `json:"parent_id"`
	Content            string             `json:"content"`
	ContentHTML        string             `json:"content_html"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	EditedAt           *time.Time         `json:"edited_at"`
	IsEdited           bool               `json:"is_edited"`
	IsDeletedByUser    bool               `json:"is_deleted_by_user"`
	IsRemovedModerator bool               `json:"is_removed_moderator"`
	Removed            bool               `json:"removed"`
	Depth              int                `json:"depth"`
	DisplayDepth       int                `json:"display_depth"`
	CachedScore        int                `json:"cached_score"`
	UserVote           *int               `json:"user_vote"`
	CanEdit            bool               `json:"can_edit"`
	CanDelete          bool               `json:"can_delete"`
	CanModerate        bool               `json:"can_moderate"`
	ReplyCount         int                `json:"reply_count"`
	Replies            []*CommentView     `json:"replies"`
	ReplyTo            *ReplyTo           `json:"reply_to,omitempty"`
}

// NewCommentView serializes c for viewer. Content is the visible text only;
// hidden content never leaves this function.
func NewCommentView(c *models.Comment, viewer *Viewer, author models.UserSummary, userVote *int) *CommentView {
	content, removed := c.VisibleContent(viewer.staff())
	if author.ID == 0 {
		author = c.User.Summary()
		author.ID = c.UserID
	}
	owner := viewer.Authenticated() && viewer.UserID == c.UserID

	var html string
	if c.State() == models.CommentActive || removed {
		html = markup.Render(content)
	} else {
		html = markup.Plain(content)
	}

	return &CommentView{
		ID:                 c.ID,
		ArticleID:          c.ArticleID,
		User:               author,
		ParentID:           c.ParentID,
		Content:            content,
		ContentHTML:        html,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		EditedAt:           c.EditedAt,
		IsEdited:           c.IsEdited,
		IsDeletedByUser:    c.IsDeletedByUser,
		IsRemovedModerator: c.IsRemovedModerator,
		Removed:            removed,
		Depth:              c.Depth,
		DisplayDepth:       c.Depth,
		CachedScore:        c.CachedScore,
		UserVote:           userVote,
		CanEdit:            owner && !c.IsRemovedModerator && !c.IsDeletedByUser,
		CanDelete:          owner && !c.IsDeletedByUser,
		CanModerate:        viewer.staff(),
		Replies:            []*CommentView{},
	}
}
