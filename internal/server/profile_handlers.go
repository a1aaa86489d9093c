package server

import (
	"io"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profile.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	email, _ := middleware.UserEmail(c)

	resp, err := s.profileService.GetProfile(c.UserContext(), email)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(resp)
}

// UpdateProfile handles PUT /api/profile.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	email, _ := middleware.UserEmail(c)

	var in service.UpdateProfileInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	resp, err := s.profileService.UpdateProfile(c.UserContext(), email, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(resp)
}

// UploadAvatar handles POST /api/profile/avatar.
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	email, _ := middleware.UserEmail(c)

	file, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
	}

	resp, err := s.profileService.UploadAvatar(c.UserContext(), email, file.Filename, content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(resp)
}
