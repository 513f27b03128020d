package server

import (
	"github.com/gofiber/fiber/v2"
)

const flagQueuePageSize = 20

// ListFlags pages the open moderation reports, oldest first.
func (s *Server) ListFlags(c *fiber.Ctx) error {
	flags, page, numPages, err := s.flags.ListOpen(c.UserContext(), viewerFrom(c), queryPage(c), flagQueuePageSize)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"results":   flags,
		"num_pages": numPages,
		"page":      page,
	})
}

// ResolveFlag closes a report. The flagged comment is left as it is; use the
// moderate endpoint to remove it.
func (s *Server) ResolveFlag(c *fiber.Ctx) error {
	flagID, err := parseID(c, "flagId")
	if err != nil {
		return nil
	}
	if err := s.flags.Resolve(c.UserContext(), viewerFrom(c), flagID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
