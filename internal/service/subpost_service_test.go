package service

import (
	"context"
	"testing"

	"scribe/internal/featureflags"
	"scribe/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// subPostRepoStub is a stub for repository.SubPostRepository.
type subPostRepoStub struct {
	createFn  func(context.Context, *models.SubPost) error
	getByIDFn func(context.Context, uint) (*models.SubPost, error)
	listFn    func(context.Context, *uint) ([]models.SubPost, error)
	updateFn  func(context.Context, uint, models.SubPostChanges) error
	deleteFn  func(context.Context, uint) error
}

func (s *subPostRepoStub) Create(ctx context.Context, sub *models.SubPost) error {
	return s.createFn(ctx, sub)
}
func (s *subPostRepoStub) GetByID(ctx context.Context, id uint) (*models.SubPost, error) {
	return s.getByIDFn(ctx, id)
}
func (s *subPostRepoStub) List(ctx context.Context, postID *uint) ([]models.SubPost, error) {
	return s.listFn(ctx, postID)
}
func (s *subPostRepoStub) Update(ctx context.Context, id uint, changes models.SubPostChanges) error {
	return s.updateFn(ctx, id, changes)
}
func (s *subPostRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopSubPostRepo() *subPostRepoStub {
	return &subPostRepoStub{
		createFn: func(_ context.Context, _ *models.SubPost) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.SubPost, error) {
			return &models.SubPost{ID: id, PostID: 1}, nil
		},
		listFn:   func(_ context.Context, _ *uint) ([]models.SubPost, error) { return nil, nil },
		updateFn: func(_ context.Context, _ uint, _ models.SubPostChanges) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
	}
}

func TestCreateSubPost_UnknownPostIsFieldError(t *testing.T) {
	posts := noopPostRepo()
	posts.authorIDFn = func(_ context.Context, _ uint) (uint, error) { return 0, gorm.ErrRecordNotFound }
	svc := NewSubPostService(noopSubPostRepo(), posts, nil)

	_, err := svc.CreateSubPost(context.Background(), CreateSubPostInput{UserID: 1, PostID: 42, Title: "t", Body: "b"})
	appErr := requireCode(t, err, models.CodeValidation)
	assert.Equal(t, `Invalid pk "42" - object does not exist.`, appErr.Fields["post"])
}

func TestCreateSubPost_Validation(t *testing.T) {
	svc := NewSubPostService(noopSubPostRepo(), noopPostRepo(), nil)

	_, err := svc.CreateSubPost(context.Background(), CreateSubPostInput{UserID: 1})
	appErr := requireCode(t, err, models.CodeValidation)
	assert.Len(t, appErr.Fields, 3)
}

func TestCreateSubPost(t *testing.T) {
	subs := noopSubPostRepo()
	subs.createFn = func(_ context.Context, s *models.SubPost) error {
		s.ID = 5
		return nil
	}
	svc := NewSubPostService(subs, noopPostRepo(), nil)

	sub, err := svc.CreateSubPost(context.Background(), CreateSubPostInput{UserID: 1, PostID: 3, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, uint(5), sub.ID)
	assert.Equal(t, uint(3), sub.PostID)
}

func TestUpdateSubPost_PutRequiresAllFields(t *testing.T) {
	svc := NewSubPostService(noopSubPostRepo(), noopPostRepo(), nil)

	_, err := svc.UpdateSubPost(context.Background(), UpdateSubPostInput{UserID: 1, SubPostID: 2, Title: strPtr("t")})
	appErr := requireCode(t, err, models.CodeValidation)
	assert.Contains(t, appErr.Fields, "post")
	assert.Contains(t, appErr.Fields, "body")
}

func TestUpdateSubPost_Reparent(t *testing.T) {
	posts := noopPostRepo()
	posts.authorIDFn = func(_ context.Context, id uint) (uint, error) {
		if id == 9 {
			return 0, gorm.ErrRecordNotFound
		}
		return 1, nil
	}
	subs := noopSubPostRepo()
	var changes models.SubPostChanges
	subs.updateFn = func(_ context.Context, _ uint, c models.SubPostChanges) error {
		changes = c
		return nil
	}
	svc := NewSubPostService(subs, posts, nil)

	target := uint(9)
	_, err := svc.UpdateSubPost(context.Background(), UpdateSubPostInput{UserID: 1, SubPostID: 2, Partial: true, PostID: &target})
	requireCode(t, err, models.CodeValidation)

	target = 4
	_, err = svc.UpdateSubPost(context.Background(), UpdateSubPostInput{UserID: 1, SubPostID: 2, Partial: true, PostID: &target})
	require.NoError(t, err)
	require.NotNil(t, changes.PostID)
	assert.Equal(t, uint(4), *changes.PostID)
	assert.Nil(t, changes.Title)
}

func TestUpdateSubPost_NotFound(t *testing.T) {
	subs := noopSubPostRepo()
	subs.getByIDFn = func(_ context.Context, _ uint) (*models.SubPost, error) { return nil, gorm.ErrRecordNotFound }
	svc := NewSubPostService(subs, noopPostRepo(), nil)

	_, err := svc.UpdateSubPost(context.Background(), UpdateSubPostInput{UserID: 1, SubPostID: 2, Partial: true})
	requireCode(t, err, models.CodeNotFound)

	err = svc.DeleteSubPost(context.Background(), DeleteSubPostInput{UserID: 1, SubPostID: 2})
	requireCode(t, err, models.CodeNotFound)
}

func TestDeleteSubPost_AuthorOnly(t *testing.T) {
	posts := noopPostRepo()
	posts.authorIDFn = func(_ context.Context, _ uint) (uint, error) { return 7, nil }
	svc := NewSubPostService(noopSubPostRepo(), posts, FlagAuthorizer(featureflags.NewManager("author_only_writes=on")))

	err := svc.DeleteSubPost(context.Background(), DeleteSubPostInput{UserID: 8, SubPostID: 2})
	requireCode(t, err, models.CodeForbidden)
	require.NoError(t, svc.DeleteSubPost(context.Background(), DeleteSubPostInput{UserID: 7, SubPostID: 2}))
}

func TestListSubPosts_PassesFilter(t *testing.T) {
	subs := noopSubPostRepo()
	var got *uint
	subs.listFn = func(_ context.Context, postID *uint) ([]models.SubPost, error) {
		got = postID
		return []models.SubPost{{ID: 1}}, nil
	}
	svc := NewSubPostService(subs, noopPostRepo(), nil)

	id := uint(3)
	list, err := svc.ListSubPosts(context.Background(), &id)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NotNil(t, got)
	assert.Equal(t, uint(3), *got)
}
