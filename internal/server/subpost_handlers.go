package server

import (
	"strconv"

	"scribe/internal/models"
	"scribe/internal/service"

	"github.com/gofiber/fiber/v2"
)

type subPostRequest struct {
	Post  *uint   `json:"post"`
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

// GetSubPosts handles GET /api/subposts
// @Summary List sub-posts
// @Tags subposts
// @Produce json
// @Param post query int false "Only sub-posts of this post"
// @Success 200 {array} models.SubPost
// @Failure 400 {object} models.ErrorResponse
// @Router /subposts [get]
func (s *Server) GetSubPosts(c *fiber.Ctx) error {
	var filter *uint
	if raw := c.Query("post"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return badRequest(c, "Invalid post filter")
		}
		postID := uint(id)
		filter = &postID
	}

	subs, err := s.subPostService.ListSubPosts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	if subs == nil {
		subs = []models.SubPost{}
	}
	return c.JSON(subs)
}

// CreateSubPost handles POST /api/subposts
// @Summary Create a sub-post
// @Tags subposts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body subPostRequest true "Sub-post"
// @Success 201 {object} models.SubPost
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /subposts [post]
func (s *Server) CreateSubPost(c *fiber.Ctx) error {
	var req subPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	in := service.CreateSubPostInput{UserID: currentUserID(c)}
	if req.Post != nil {
		in.PostID = *req.Post
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Body != nil {
		in.Body = *req.Body
	}

	sub, err := s.subPostService.CreateSubPost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// GetSubPost handles GET /api/subposts/:id
// @Summary Get a sub-post
// @Tags subposts
// @Produce json
// @Param id path int true "Sub-post ID"
// @Success 200 {object} models.SubPost
// @Failure 404 {object} models.ErrorResponse
// @Router /subposts/{id} [get]
func (s *Server) GetSubPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	sub, err := s.subPostService.GetSubPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// UpdateSubPost handles PUT /api/subposts/:id
// @Summary Replace a sub-post
// @Tags subposts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sub-post ID"
// @Param request body subPostRequest true "Sub-post"
// @Success 200 {object} models.SubPost
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /subposts/{id} [put]
func (s *Server) UpdateSubPost(c *fiber.Ctx) error {
	return s.updateSubPost(c, false)
}

// PatchSubPost handles PATCH /api/subposts/:id
// @Summary Partially update a sub-post
// @Tags subposts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Sub-post ID"
// @Param request body subPostRequest true "Fields to change"
// @Success 200 {object} models.SubPost
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /subposts/{id} [patch]
func (s *Server) PatchSubPost(c *fiber.Ctx) error {
	return s.updateSubPost(c, true)
}

func (s *Server) updateSubPost(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req subPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	sub, err := s.subPostService.UpdateSubPost(c.UserContext(), service.UpdateSubPostInput{
		UserID:    currentUserID(c),
		SubPostID: id,
		Partial:   partial,
		PostID:    req.Post,
		Title:     req.Title,
		Body:      req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// DeleteSubPost handles DELETE /api/subposts/:id
// @Summary Delete a sub-post
// @Tags subposts
// @Security BearerAuth
// @Param id path int true "Sub-post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /subposts/{id} [delete]
func (s *Server) DeleteSubPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.subPostService.DeleteSubPost(c.UserContext(), service.DeleteSubPostInput{
		UserID:    currentUserID(c),
		SubPostID: id,
	}); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
