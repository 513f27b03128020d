package server

import (
	"log/slog"
	"strings"

	"newsadvance/internal/middleware"
	"newsadvance/internal/models"
	"newsadvance/internal/observability"

	"github.com/gofiber/fiber/v2"
)

const localsViewer = "viewer"

// Authenticate resolves the bearer token, when one is sent, into the request's
// viewer. Requests without a token continue anonymously; a token that fails
// verification is rejected so clients notice expired sessions.
func (s *Server) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws/")
		token := middleware.ExtractToken(c, isWSPath)
		if token == "" {
			if c.Get("Authorization") != "" {
				return respondErr(c, models.NewUnauthenticatedError())
			}
			return c.Next()
		}

		userID, err := s.verifier.Verify(token)
		if err != nil {
			return respondErr(c, models.NewUnauthenticatedError())
		}

		viewer, err := s.principals.Resolve(c.UserContext(), userID)
		if err != nil {
			if !models.IsCode(err, models.CodeUnauthenticated) {
				observability.Logger.ErrorContext(c.UserContext(), "resolve principal failed",
					slog.Uint64("user_id", uint64(userID)),
					slog.String("error", err.Error()),
				)
			}
			return respondErr(c, err)
		}

		c.Locals("userID", viewer.UserID)
		c.Locals(localsViewer, viewer)
		c.SetUserContext(middleware.WithRequestValues(c, c.UserContext()))
		return c.Next()
	}
}

// AuthRequired rejects anonymous requests. Must follow Authenticate.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !viewerFrom(c).Authenticated() {
			return respondErr(c, models.NewUnauthenticatedError())
		}
		return c.Next()
	}
}

// StaffRequired rejects non-staff viewers with 403. Must follow AuthRequired.
func (s *Server) StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v := viewerFrom(c); v == nil || !v.IsStaff {
			return respondErr(c, models.NewPermissionDeniedError("Moderator privileges required"))
		}
		return c.Next()
	}
}
