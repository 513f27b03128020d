package server

import (
	"log/slog"

	"newsadvance/internal/models"
	"newsadvance/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localsArticleID = "articleID"

// ArticleStreamUpgrade checks the upgrade request before the handshake: it
// must be a WebSocket upgrade for an existing article.
func (s *Server) ArticleStreamUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		articleID, err := parseID(c, "articleId")
		if err != nil {
			return nil
		}
		exists, err := s.articles.Exists(c.UserContext(), articleID)
		if err != nil {
			return respondErr(c, err)
		}
		if !exists {
			return respondErr(c, models.NewNotFoundError("Article", articleID))
		}
		c.Locals(localsArticleID, articleID)
		return c.Next()
	}
}

// ArticleStream streams live thread events for one article. Signed-in
// viewers also receive their reply notifications on the same socket.
func (s *Server) ArticleStream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		articleID, _ := conn.Locals(localsArticleID).(uint)
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(articleID, userID, conn)
		if err != nil {
			observability.Logger.Warn("websocket registration rejected",
				slog.Uint64("article_id", uint64(articleID)),
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
