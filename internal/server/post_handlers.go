package server

import (
	"scribe/internal/models"
	"scribe/internal/notifications"
	"scribe/internal/service"

	"github.com/gofiber/fiber/v2"
)

type subPostPayload struct {
	ID    *uint  `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// postPayload is the request body of create, bulk create, PUT and PATCH.
// A missing or null subposts field is nil.
type postPayload struct {
	Title    *string           `json:"title"`
	Body     *string           `json:"body"`
	SubPosts *[]subPostPayload `json:"subposts"`
}

func (p postPayload) subPostInputs() []service.SubPostInput {
	if p.SubPosts == nil {
		return nil
	}
	out := make([]service.SubPostInput, 0, len(*p.SubPosts))
	for _, sp := range *p.SubPosts {
		in := service.SubPostInput{Title: sp.Title, Body: sp.Body}
		if sp.ID != nil {
			in.ID = *sp.ID
		}
		out = append(out, in)
	}
	return out
}

func (p postPayload) createInput(authorID uint) service.CreatePostInput {
	in := service.CreatePostInput{AuthorID: authorID, SubPosts: p.subPostInputs()}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Body != nil {
		in.Body = *p.Body
	}
	return in
}

type postPage struct {
	Count    int64                 `json:"count"`
	Next     *string               `json:"next"`
	Previous *string               `json:"previous"`
	Results  []models.PostResponse `json:"results"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Paginated posts, newest first
// @Tags posts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size (max 100)" default(20)
// @Success 200 {object} postPage
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	req := parsePageRequest(c)
	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return respondError(c, err)
	}

	resp := postPage{Count: page.Count, Results: models.PostResponses(page.Results)}
	if page.HasNext {
		next := pageURL(c, page.Page+1)
		resp.Next = &next
	}
	if page.Page > 1 {
		prev := pageURL(c, page.Page-1)
		resp.Previous = &prev
	}
	return c.JSON(resp)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Creates a post together with its nested sub-posts
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body postPayload true "Post"
// @Success 201 {object} models.PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postPayload
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	post, err := s.postService.CreatePost(c.UserContext(), req.createInput(currentUserID(c)))
	if err != nil {
		return respondError(c, err)
	}

	s.publishPostEvent(c, notifications.EventPostCreated, post)
	return c.Status(fiber.StatusCreated).JSON(post.Response())
}

// BulkCreatePosts handles POST /api/posts/bulk
// @Summary Create many posts atomically
// @Description Either every post is created or none is
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{posts=[]postPayload} true "Posts"
// @Success 201 {array} models.PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts/bulk [post]
func (s *Server) BulkCreatePosts(c *fiber.Ctx) error {
	var req struct {
		Posts *[]postPayload `json:"posts"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Posts == nil {
		return respondError(c, models.NewFieldValidationError(map[string]string{
			"posts": "This field is required.",
		}))
	}

	authorID := currentUserID(c)
	inputs := make([]service.CreatePostInput, 0, len(*req.Posts))
	for _, p := range *req.Posts {
		inputs = append(inputs, p.createInput(authorID))
	}

	posts, err := s.postService.BulkCreatePosts(c.UserContext(), authorID, inputs)
	if err != nil {
		return respondError(c, err)
	}

	for i := range posts {
		s.publishPostEvent(c, notifications.EventPostCreated, &posts[i])
	}
	return c.Status(fiber.StatusCreated).JSON(models.PostResponses(posts))
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post.Response())
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Replace a post
// @Description Title and body are required; subposts, when present, are reconciled
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body postPayload true "Post"
// @Success 200 {object} models.PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	return s.updatePost(c, false)
}

// PatchPost handles PATCH /api/posts/:id
// @Summary Partially update a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body postPayload true "Fields to change"
// @Success 200 {object} models.PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [patch]
func (s *Server) PatchPost(c *fiber.Ctx) error {
	return s.updatePost(c, true)
}

func (s *Server) updatePost(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req postPayload
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	in := service.UpdatePostInput{
		UserID:  currentUserID(c),
		PostID:  id,
		Partial: partial,
		Title:   req.Title,
		Body:    req.Body,
	}
	if req.SubPosts != nil {
		subs := req.subPostInputs()
		in.SubPosts = &subs
	}

	post, err := s.postService.UpdatePost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}

	s.publishPostEvent(c, notifications.EventPostUpdated, post)
	return c.JSON(post.Response())
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Cascades to sub-posts and likes
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return respondError(c, err)
	}

	s.publishEvent(c, notifications.EventPostDeleted, postRefPayload{PostID: id})
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Toggle like
// @Description Likes the post, or removes the caller's like if present
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.LikeToggleResult
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	result, err := s.postService.ToggleLike(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}

	s.publishEvent(c, notifications.EventPostReactionUpdated, reactionPayload{
		PostID:           id,
		UserID:           userID,
		LikeToggleResult: *result,
	})
	return c.JSON(result)
}

// GetPostLikes handles GET /api/posts/:id/likes
// @Summary List likes of a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Like
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/likes [get]
func (s *Server) GetPostLikes(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	likes, err := s.postService.ListLikes(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if likes == nil {
		likes = []models.Like{}
	}
	return c.JSON(likes)
}

// ViewPost handles GET /api/posts/:id/view
// @Summary Count a view
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{views_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/view [get]
func (s *Server) ViewPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	views, err := s.postService.IncrementViews(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	s.publishEvent(c, notifications.EventPostViewed, viewPayload{PostID: id, ViewsCount: views})
	return c.JSON(fiber.Map{"views_count": views})
}
