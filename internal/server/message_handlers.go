package server

import (
	"net/url"

	"prok/internal/middleware"
	"prok/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendMessage handles POST /api/messages.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	email, _ := middleware.UserEmail(c)

	var req struct {
		Receiver string `json:"receiver"`
		Content  string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.SendMessage(c.UserContext(), email, req.Receiver, req.Content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(message)
}

// GetConversation handles GET /api/messages/:email.
func (s *Server) GetConversation(c *fiber.Ctx) error {
	email, _ := middleware.UserEmail(c)
	other, err := url.PathUnescape(c.Params("email"))
	if err != nil || other == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid email parameter"))
	}

	messages, err := s.messageService.Conversation(c.UserContext(), email, other,
		c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}
