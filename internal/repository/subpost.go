package repository

import (
	"context"
	"time"

	"scribe/internal/models"

	"gorm.io/gorm"
)

// SubPostRepository defines persistence operations for sub-posts.
type SubPostRepository interface {
	Create(ctx context.Context, sub *models.SubPost) error
	GetByID(ctx context.Context, id uint) (*models.SubPost, error)
	List(ctx context.Context, postID *uint) ([]models.SubPost, error)
	Update(ctx context.Context, id uint, changes models.SubPostChanges) error
	Delete(ctx context.Context, id uint) error
}

type subPostRepository struct {
	db *gorm.DB
}

// NewSubPostRepository returns a new SubPostRepository implementation.
func NewSubPostRepository(db *gorm.DB) SubPostRepository {
	return &subPostRepository{db: db}
}

func (r *subPostRepository) Create(ctx context.Context, sub *models.SubPost) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *subPostRepository) GetByID(ctx context.Context, id uint) (*models.SubPost, error) {
	var sub models.SubPost
	if err := r.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// List returns sub-posts oldest first, optionally restricted to one post.
func (r *subPostRepository) List(ctx context.Context, postID *uint) ([]models.SubPost, error) {
	q := subPostOrder(readDB(r.db).WithContext(ctx))
	if postID != nil {
		q = q.Where("post_id = ?", *postID)
	}

	var subs []models.SubPost
	if err := q.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subPostRepository) Update(ctx context.Context, id uint, changes models.SubPostChanges) error {
	fields := map[string]interface{}{"updated_at": time.Now()}
	if changes.PostID != nil {
		fields["post_id"] = *changes.PostID
	}
	if changes.Title != nil {
		fields["title"] = *changes.Title
	}
	if changes.Body != nil {
		fields["body"] = *changes.Body
	}

	res := r.db.WithContext(ctx).Model(&models.SubPost{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *subPostRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SubPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
