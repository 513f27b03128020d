package server

import (
	"newsadvance/internal/models"
	"newsadvance/internal/service"

	"github.com/gofiber/fiber/v2"
)

const myCommentsPageSize = 20

type articleRef struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type myCommentView struct {
	*service.CommentView
	Article articleRef `json:"article"`
}

// MyComments pages the current user's comments, newest first.
func (s *Server) MyComments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	viewer := viewerFrom(c)

	comments, page, numPages, err := s.comments.ListByUser(ctx, viewer.UserID, queryPage(c), myCommentsPageSize)
	if err != nil {
		return respondErr(c, err)
	}
	views, err := s.threads.Views(ctx, comments, viewer)
	if err != nil {
		return respondErr(c, err)
	}

	results := make([]myCommentView, 0, len(views))
	for i, v := range views {
		results = append(results, myCommentView{
			CommentView: v,
			Article:     articleRef{ID: comments[i].ArticleID, Title: comments[i].Article.Title},
		})
	}
	return c.JSON(fiber.Map{
		"results":   results,
		"num_pages": numPages,
		"page":      page,
	})
}

// GetPreferences returns the current user's comment preferences, defaults
// included.
func (s *Server) GetPreferences(c *fiber.Ctx) error {
	prefs, err := s.prefs.Get(c.UserContext(), viewerFrom(c).UserID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(prefs)
}

// UpdatePreferences changes the fields present in the body and leaves the
// rest untouched.
func (s *Server) UpdatePreferences(c *fiber.Ctx) error {
	var in service.UpdatePreferencesInput
	for key, dst := range map[string]**bool{
		"show_comments":           &in.ShowComments,
		"notify_on_comment_reply": &in.NotifyOnCommentReply,
	} {
		raw, present, err := bodyField(c, key)
		if err != nil {
			return respondErr(c, err)
		}
		if present {
			v := parseTruthy(raw)
			*dst = &v
		}
	}
	if in.ShowComments == nil && in.NotifyOnCommentReply == nil {
		return respondErr(c, models.NewValidationError("No preferences to update"))
	}

	prefs, err := s.prefs.Update(c.UserContext(), viewerFrom(c).UserID, in)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(prefs)
}
