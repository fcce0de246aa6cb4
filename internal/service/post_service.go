// Package service holds the blog's business rules between the HTTP layer and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/observability"
	"scribe/internal/repository"
	"scribe/internal/validation"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PostService struct {
	postRepo  repository.PostRepository
	likeRepo  repository.LikeRepository
	authorize Authorizer
}

// SubPostInput is one nested sub-post of a create or update payload. ID 0 means "new".
type SubPostInput struct {
	ID    uint
	Title string
	Body  string
}

type CreatePostInput struct {
	AuthorID uint
	Title    string
	Body     string
	SubPosts []SubPostInput
}

// UpdatePostInput describes a PUT (Partial false) or PATCH (Partial true).
// A nil SubPosts leaves the post's sub-posts untouched.
type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Partial  bool
	Title    *string
	Body     *string
	SubPosts *[]SubPostInput
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

type ListPostsInput struct {
	Page     int
	PageSize int
}

// PostPage is one page of the post listing.
type PostPage struct {
	Count    int64
	Page     int
	PageSize int
	HasNext  bool
	Results  []models.Post
}

func NewPostService(
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
	authorize Authorizer,
) *PostService {
	if authorize == nil {
		authorize = AllowAuthenticated
	}
	return &PostService{
		postRepo:  postRepo,
		likeRepo:  likeRepo,
		authorize: authorize,
	}
}

func postNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Post", id)
	}
	return err
}

func checkSubPosts(fe validation.FieldErrors, prefix string, subs []SubPostInput) {
	for j, sp := range subs {
		p := fmt.Sprintf("%ssubposts[%d].", prefix, j)
		fe.CheckTitle(p, sp.Title)
		fe.CheckBody(p, sp.Body)
	}
}

func checkPost(fe validation.FieldErrors, prefix string, in CreatePostInput) {
	fe.CheckTitle(prefix, in.Title)
	fe.CheckBody(prefix, in.Body)
	checkSubPosts(fe, prefix, in.SubPosts)
}

func newPost(in CreatePostInput, authorID uint) *models.Post {
	post := &models.Post{
		Title:    in.Title,
		Body:     in.Body,
		AuthorID: authorID,
	}
	for _, sp := range in.SubPosts {
		post.SubPosts = append(post.SubPosts, models.SubPost{Title: sp.Title, Body: sp.Body})
	}
	return post
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := s.authorize(ctx, in.AuthorID, in.AuthorID); err != nil {
		return nil, err
	}

	fe := validation.FieldErrors{}
	checkPost(fe, "", in)
	if err := fe.Err(); err != nil {
		return nil, err
	}

	post := newPost(in, in.AuthorID)
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return s.GetPost(ctx, post.ID)
}

// BulkCreatePosts validates every entry before inserting any; all posts are
// authored by authorID and persisted in one transaction.
func (s *PostService) BulkCreatePosts(ctx context.Context, authorID uint, in []CreatePostInput) ([]models.Post, error) {
	if err := s.authorize(ctx, authorID, authorID); err != nil {
		return nil, err
	}

	fe := validation.FieldErrors{}
	for i, p := range in {
		checkPost(fe, fmt.Sprintf("posts[%d].", i), p)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return []models.Post{}, nil
	}

	posts := make([]*models.Post, 0, len(in))
	ids := make([]uint, 0, len(in))
	for _, p := range in {
		posts = append(posts, newPost(p, authorID))
	}
	if err := s.postRepo.CreateBulk(ctx, posts); err != nil {
		return nil, fmt.Errorf("bulk create posts: %w", err)
	}
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return s.postRepo.GetByIDs(ctx, ids)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, postNotFound(err, id)
	}
	return post, nil
}

// ListPosts returns one page, newest first. A page past the last one is NOT_FOUND;
// page 1 of an empty listing is not.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	size := in.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	count, err := s.postRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	lastPage := int((count + int64(size) - 1) / int64(size))
	if lastPage < 1 {
		lastPage = 1
	}
	if in.Page < 1 || in.Page > lastPage {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: "Invalid page."}
	}

	posts, err := s.postRepo.List(ctx, size, (in.Page-1)*size)
	if err != nil {
		return nil, err
	}
	return &PostPage{
		Count:    count,
		Page:     in.Page,
		PageSize: size,
		HasNext:  in.Page < lastPage,
		Results:  posts,
	}, nil
}

// UpdatePost applies a PUT or PATCH. When SubPosts is set the post's sub-posts are
// reconciled against it in the same transaction as the field update.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	fe := validation.FieldErrors{}
	if !in.Partial {
		if in.Title == nil {
			fe.Add("title", "title is required")
		}
		if in.Body == nil {
			fe.Add("body", "body is required")
		}
	}
	if in.Title != nil {
		fe.CheckTitle("", *in.Title)
	}
	if in.Body != nil {
		fe.CheckBody("", *in.Body)
	}
	if in.SubPosts != nil {
		checkSubPosts(fe, "", *in.SubPosts)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	authorID, err := s.postRepo.AuthorID(ctx, in.PostID)
	if err != nil {
		return nil, postNotFound(err, in.PostID)
	}
	if err := s.authorize(ctx, in.UserID, authorID); err != nil {
		return nil, err
	}

	var planner repository.SubPostPlanner
	if in.SubPosts != nil {
		drafts := make([]models.SubPostDraft, 0, len(*in.SubPosts))
		for _, sp := range *in.SubPosts {
			drafts = append(drafts, models.SubPostDraft{ID: sp.ID, Title: sp.Title, Body: sp.Body})
		}
		planner = func(existing []models.SubPost) models.SubPostPlan {
			return PlanSubPosts(existing, drafts)
		}
	}

	plan, err := s.postRepo.Update(ctx, in.PostID, models.PostChanges{Title: in.Title, Body: in.Body}, planner)
	if err != nil {
		return nil, postNotFound(err, in.PostID)
	}
	if plan != nil && len(plan.Ignored) > 0 {
		middleware.Logger.WarnContext(ctx, "ignored sub-post ids that do not belong to the post",
			slog.Uint64("post_id", uint64(in.PostID)),
			slog.Any("ignored_ids", plan.Ignored),
		)
	}
	return s.GetPost(ctx, in.PostID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	authorID, err := s.postRepo.AuthorID(ctx, in.PostID)
	if err != nil {
		return postNotFound(err, in.PostID)
	}
	if err := s.authorize(ctx, in.UserID, authorID); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return postNotFound(err, in.PostID)
	}
	return nil
}

// ToggleLike likes the post for userID, or removes the like if one exists.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.LikeToggleResult, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := s.ensurePost(ctx, postID); err != nil {
		return nil, err
	}
	result, err := s.likeRepo.Toggle(ctx, postID, userID)
	if err != nil {
		return nil, postNotFound(err, postID)
	}
	return result, nil
}

func (s *PostService) ListLikes(ctx context.Context, postID uint) ([]models.Like, error) {
	if err := s.ensurePost(ctx, postID); err != nil {
		return nil, err
	}
	return s.likeRepo.ListByPost(ctx, postID)
}

// IncrementViews records one view and returns the new total.
func (s *PostService) IncrementViews(ctx context.Context, postID uint) (int64, error) {
	views, err := s.postRepo.IncrementViews(ctx, postID)
	if err != nil {
		return 0, postNotFound(err, postID)
	}
	observability.PostViews.Inc()
	return views, nil
}

func (s *PostService) ensurePost(ctx context.Context, postID uint) error {
	ok, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}
