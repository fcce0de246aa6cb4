package service

import (
	"context"
	"errors"
	"fmt"

	"scribe/internal/models"
	"scribe/internal/repository"
	"scribe/internal/validation"

	"gorm.io/gorm"
)

type SubPostService struct {
	subPostRepo repository.SubPostRepository
	postRepo    repository.PostRepository
	authorize   Authorizer
}

type CreateSubPostInput struct {
	UserID uint
	PostID uint
	Title  string
	Body   string
}

// UpdateSubPostInput describes a PUT (Partial false, all fields required) or PATCH.
type UpdateSubPostInput struct {
	UserID    uint
	SubPostID uint
	Partial   bool
	PostID    *uint
	Title     *string
	Body      *string
}

type DeleteSubPostInput struct {
	UserID    uint
	SubPostID uint
}

func NewSubPostService(
	subPostRepo repository.SubPostRepository,
	postRepo repository.PostRepository,
	authorize Authorizer,
) *SubPostService {
	if authorize == nil {
		authorize = AllowAuthenticated
	}
	return &SubPostService{
		subPostRepo: subPostRepo,
		postRepo:    postRepo,
		authorize:   authorize,
	}
}

func subPostNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("SubPost", id)
	}
	return err
}

func invalidPostRef(postID uint) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", postID)
}

// owningAuthor resolves the author of postID; an unknown post is a field error on "post".
func (s *SubPostService) owningAuthor(ctx context.Context, postID uint) (uint, error) {
	authorID, err := s.postRepo.AuthorID(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, models.NewFieldValidationError(map[string]string{"post": invalidPostRef(postID)})
	}
	return authorID, err
}

// ListSubPosts returns sub-posts oldest first, optionally only those of postID.
func (s *SubPostService) ListSubPosts(ctx context.Context, postID *uint) ([]models.SubPost, error) {
	return s.subPostRepo.List(ctx, postID)
}

func (s *SubPostService) GetSubPost(ctx context.Context, id uint) (*models.SubPost, error) {
	sub, err := s.subPostRepo.GetByID(ctx, id)
	if err != nil {
		return nil, subPostNotFound(err, id)
	}
	return sub, nil
}

func (s *SubPostService) CreateSubPost(ctx context.Context, in CreateSubPostInput) (*models.SubPost, error) {
	fe := validation.FieldErrors{}
	if in.PostID == 0 {
		fe.Add("post", "post is required")
	}
	fe.CheckTitle("", in.Title)
	fe.CheckBody("", in.Body)
	if err := fe.Err(); err != nil {
		return nil, err
	}

	authorID, err := s.owningAuthor(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, in.UserID, authorID); err != nil {
		return nil, err
	}

	sub := &models.SubPost{PostID: in.PostID, Title: in.Title, Body: in.Body}
	if err := s.subPostRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create sub-post: %w", err)
	}
	return sub, nil
}

// UpdateSubPost edits a sub-post and may move it to another post; writes are
// checked against the author of both the current and the target post.
func (s *SubPostService) UpdateSubPost(ctx context.Context, in UpdateSubPostInput) (*models.SubPost, error) {
	fe := validation.FieldErrors{}
	if !in.Partial {
		if in.PostID == nil {
			fe.Add("post", "post is required")
		}
		if in.Title == nil {
			fe.Add("title", "title is required")
		}
		if in.Body == nil {
			fe.Add("body", "body is required")
		}
	}
	if in.PostID != nil && *in.PostID == 0 {
		fe.Add("post", "post is required")
	}
	if in.Title != nil {
		fe.CheckTitle("", *in.Title)
	}
	if in.Body != nil {
		fe.CheckBody("", *in.Body)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	current, err := s.GetSubPost(ctx, in.SubPostID)
	if err != nil {
		return nil, err
	}
	authorID, err := s.postRepo.AuthorID(ctx, current.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, in.UserID, authorID); err != nil {
		return nil, err
	}

	if in.PostID != nil && *in.PostID != current.PostID {
		targetAuthor, err := s.owningAuthor(ctx, *in.PostID)
		if err != nil {
			return nil, err
		}
		if err := s.authorize(ctx, in.UserID, targetAuthor); err != nil {
			return nil, err
		}
	}

	changes := models.SubPostChanges{PostID: in.PostID, Title: in.Title, Body: in.Body}
	if err := s.subPostRepo.Update(ctx, in.SubPostID, changes); err != nil {
		return nil, subPostNotFound(err, in.SubPostID)
	}
	return s.GetSubPost(ctx, in.SubPostID)
}

func (s *SubPostService) DeleteSubPost(ctx context.Context, in DeleteSubPostInput) error {
	current, err := s.GetSubPost(ctx, in.SubPostID)
	if err != nil {
		return err
	}
	authorID, err := s.postRepo.AuthorID(ctx, current.PostID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, in.UserID, authorID); err != nil {
		return err
	}
	if err := s.subPostRepo.Delete(ctx, in.SubPostID); err != nil {
		return subPostNotFound(err, in.SubPostID)
	}
	return nil
}
