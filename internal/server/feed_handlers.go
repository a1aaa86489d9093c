package server

import (
	"prok/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed, returning every post newest first.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	posts, err := s.postService.Feed(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}
