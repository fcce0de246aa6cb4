package server

import (
	"scribe/internal/models"

	"github.com/gofiber/fiber/v2"
)

// publishEvent fans a post lifecycle event out to feed subscribers. Delivery
// is best effort and never affects the response.
func (s *Server) publishEvent(c *fiber.Ctx, eventType string, payload interface{}) {
	s.events.Publish(c.UserContext(), currentUserID(c), eventType, payload)
}

func (s *Server) publishPostEvent(c *fiber.Ctx, eventType string, post *models.Post) {
	s.publishEvent(c, eventType, post.Response())
}

type postRefPayload struct {
	PostID uint `json:"post_id"`
}

type reactionPayload struct {
	PostID uint `json:"post_id"`
	UserID uint `json:"user_id"`
	models.LikeToggleResult
}

type viewPayload struct {
	PostID     uint  `json:"post_id"`
	ViewsCount int64 `json:"views_count"`
}
