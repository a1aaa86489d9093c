package server

import (
	"io"
	"strconv"
	"strings"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts. The payload is a multipart form so an
// optional media file can ride along with the text fields.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	email, _ := middleware.UserEmail(c)

	in := service.CreatePostInput{
		AuthorEmail:   email,
		Title:         c.FormValue("title"),
		Content:       c.FormValue("content"),
		Category:      c.FormValue("category"),
		Tags:          splitTags(c.FormValue("tags")),
		IsPublic:      formBool(c, "is_public", true),
		AllowComments: formBool(c, "allow_comments", true),
	}

	if file, err := c.FormFile("media"); err == nil {
		src, err := file.Open()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Unable to read uploaded file"))
		}
		content, readErr := io.ReadAll(src)
		_ = src.Close()
		if readErr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Unable to read uploaded file"))
		}
		in.Media = &service.MediaUpload{Filename: file.Filename, Data: content}
	}

	resp, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetPosts handles GET /api/posts with filtering, sorting and pagination.
// The visibility filter is only honored for authenticated callers; anonymous
// requests are pinned to public posts.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	visibility := c.Query("visibility")
	if _, authed := middleware.UserEmail(c); !authed {
		visibility = "public"
	}

	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		Tag:        c.Query("tag"),
		Visibility: visibility,
		Sort:       c.Query("sort"),
		Page:       c.QueryInt("page", 1),
		PerPage:    c.QueryInt("per_page", 0),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetPublicPosts handles GET /api/posts/public. It serves the same listing
// as GetPosts but is pinned to public posts regardless of query parameters.
func (s *Server) GetPublicPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		Tag:        c.Query("tag"),
		Visibility: "public",
		Sort:       c.Query("sort"),
		Page:       c.QueryInt("page", 1),
		PerPage:    c.QueryInt("per_page", 0),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/posts/:id.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	viewer, _ := middleware.UserEmail(c)
	resp, svcErr := s.postService.GetPost(c.UserContext(), id, viewer)
	if svcErr != nil {
		return models.RespondWithAppError(c, svcErr)
	}
	return c.JSON(resp)
}

// LikePost handles POST /api/posts/:id/like.
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	viewer, _ := middleware.UserEmail(c)
	resp, svcErr := s.postService.LikePost(c.UserContext(), id, viewer)
	if svcErr != nil {
		return models.RespondWithAppError(c, svcErr)
	}
	return c.JSON(resp)
}

// DeletePost handles DELETE /api/posts/:id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	email, _ := middleware.UserEmail(c)
	if svcErr := s.postService.DeletePost(c.UserContext(), id, email); svcErr != nil {
		return models.RespondWithAppError(c, svcErr)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// GetCategories handles GET /api/posts/categories.
func (s *Server) GetCategories(c *fiber.Ctx) error {
	categories, err := s.postService.Categories(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// GetPopularTags handles GET /api/posts/popular-tags.
func (s *Server) GetPopularTags(c *fiber.Ctx) error {
	tags, err := s.postService.PopularTags(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"tags": tags})
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formBool(c *fiber.Ctx, field string, def bool) bool {
	raw := c.FormValue(field)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
