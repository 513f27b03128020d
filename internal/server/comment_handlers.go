package server

import (
	"strconv"
	"strings"

	"newsadvance/internal/models"
	"newsadvance/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListComments returns a page of an article's top-level comments with their
// reply windows (public).
func (s *Server) ListComments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	articleID, err := parseID(c, "articleId")
	if err != nil {
		return nil
	}

	exists, err := s.articles.Exists(ctx, articleID)
	if err != nil {
		return respondErr(c, err)
	}
	if !exists {
		return respondErr(c, models.NewNotFoundError("Article", articleID))
	}

	page, err := s.threads.ListTopLevel(ctx, articleID, viewerFrom(c), queryPage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// CreateComment posts a top-level comment on an article.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	articleID, err := parseID(c, "articleId")
	if err != nil {
		return nil
	}
	content, err := bodyString(c, "content")
	if err != nil {
		return respondErr(c, err)
	}

	created, err := s.gate.CreateComment(ctx, viewerFrom(c), articleID, content)
	if err != nil {
		return respondErr(c, err)
	}
	return s.respondCreated(c, created)
}

// ReplyToComment posts a reply under an existing comment.
func (s *Server) ReplyToComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	parentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	content, err := bodyString(c, "content")
	if err != nil {
		return respondErr(c, err)
	}

	created, err := s.gate.Reply(ctx, viewerFrom(c), parentID, content)
	if err != nil {
		return respondErr(c, err)
	}
	return s.respondCreated(c, created)
}

func (s *Server) respondCreated(c *fiber.Ctx, created *models.Comment) error {
	view, err := s.threads.View(c.UserContext(), created, viewerFrom(c))
	if err != nil {
		return respondErr(c, err)
	}
	s.publishCommentEvent(c.UserContext(), EventCommentCreated, created)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"comment": view})
}

// ListReplies pages a comment's direct replies (public).
func (s *Server) ListReplies(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.threads.Replies(c.UserContext(), commentID, viewerFrom(c), queryPage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// GetComment returns a single comment as the viewer sees it (public).
func (s *Server) GetComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return respondErr(c, err)
	}
	view, err := s.threads.View(ctx, comment, viewerFrom(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"comment": view})
}

// EditComment replaces the content of the viewer's own comment.
func (s *Server) EditComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	content, err := bodyString(c, "content")
	if err != nil {
		return respondErr(c, err)
	}

	updated, err := s.gate.Edit(ctx, viewerFrom(c), commentID, content)
	if err != nil {
		return respondErr(c, err)
	}
	return s.respondComment(c, updated, EventCommentUpdated)
}

// DeleteComment soft-deletes the viewer's own comment. The row and its
// replies remain.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	deleted, err := s.gate.Delete(ctx, viewerFrom(c), commentID)
	if err != nil {
		return respondErr(c, err)
	}
	return s.respondComment(c, deleted, EventCommentDeleted)
}

func (s *Server) respondComment(c *fiber.Ctx, comment *models.Comment, event string) error {
	view, err := s.threads.View(c.UserContext(), comment, viewerFrom(c))
	if err != nil {
		return respondErr(c, err)
	}
	s.publishCommentEvent(c.UserContext(), event, comment)
	return c.JSON(fiber.Map{"comment": view})
}

// ModerateComment removes or restores a comment (staff). `remove` takes the
// usual truthy spellings; anything else restores.
func (s *Server) ModerateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	raw, err := bodyString(c, "remove")
	if err != nil {
		return respondErr(c, err)
	}

	viewer := viewerFrom(c)
	moderated, err := s.gate.Moderate(ctx, viewer, commentID, parseTruthy(raw))
	if err != nil {
		return respondErr(c, err)
	}
	view, err := s.threads.View(ctx, moderated, viewer)
	if err != nil {
		return respondErr(c, err)
	}
	s.publishCommentEvent(ctx, EventCommentModerated, moderated)
	return c.JSON(fiber.Map{"success": true, "comment": view})
}

// FlagComment reports a comment to moderators. Flagging again updates the
// reason and note.
func (s *Server) FlagComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reason, err := bodyString(c, "reason")
	if err != nil {
		return respondErr(c, err)
	}
	note, err := bodyString(c, "note")
	if err != nil {
		return respondErr(c, err)
	}

	if _, err := s.gate.Flag(ctx, viewerFrom(c), commentID, reason, note); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// VoteComment records an up (1) or down (-1) vote, replacing any earlier vote.
func (s *Server) VoteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	raw, present, err := bodyField(c, "value")
	if err != nil {
		return respondErr(c, err)
	}
	if !present {
		return respondErr(c, models.NewValidationError("Vote value is required"))
	}
	value, convErr := strconv.Atoi(strings.TrimSpace(raw))
	if convErr != nil {
		return respondErr(c, models.NewValidationError("Invalid vote value"))
	}
	return s.applyVote(c, commentID, &value)
}

// RetractVote removes the viewer's vote. Retracting twice is a no-op.
func (s *Server) RetractVote(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.applyVote(c, commentID, nil)
}

func (s *Server) applyVote(c *fiber.Ctx, commentID uint, value *int) error {
	ctx := c.UserContext()
	result, err := s.gate.Vote(ctx, viewerFrom(c), commentID, value)
	if err != nil {
		return respondErr(c, err)
	}
	s.publishVoteEvent(ctx, commentID, result)
	return c.JSON(voteResponse{Success: true, VoteResult: result})
}

type voteResponse struct {
	Success bool `json:"success"`
	*service.VoteResult
}
