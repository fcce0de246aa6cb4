package repository

import (
	"context"

	"scribe/internal/models"
	"scribe/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines persistence operations for likes.
type LikeRepository interface {
	Toggle(ctx context.Context, postID, userID uint) (*models.LikeToggleResult, error)
	Create(ctx context.Context, like *models.Like) error
	ListByPost(ctx context.Context, postID uint) ([]models.Like, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Toggle flips the user's like on the post. The unique (post_id, user_id) index
// decides between concurrent togglers: the insert is a no-op when a row exists,
// in which case that row is removed instead. A post deleted mid-toggle yields
// gorm.ErrRecordNotFound.
func (r *likeRepository) Toggle(ctx context.Context, postID, userID uint) (result *models.LikeToggleResult, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "Toggle", "likes")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("toggle", "likes")()

	result = &models.LikeToggleResult{}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := models.Like{PostID: postID, UserID: userID}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Omit(clause.Associations).Create(&like)
		if res.Error != nil {
			if isForeignKeyViolation(res.Error) {
				return gorm.ErrRecordNotFound
			}
			return res.Error
		}

		result.Liked = res.RowsAffected > 0
		if !result.Liked {
			if err := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&result.LikesCount).Error
	})
	if err != nil {
		return nil, err
	}

	if result.Liked {
		observability.LikeToggles.WithLabelValues("liked").Inc()
	} else {
		observability.LikeToggles.WithLabelValues("unliked").Inc()
	}
	return result, nil
}

// Create inserts a like directly. A second like for the same (post, user) is a CONFLICT.
func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(like).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("Post already liked by this user", err)
		}
		return err
	}
	return nil
}

// ListByPost returns the post's likes, newest first.
func (r *likeRepository) ListByPost(ctx context.Context, postID uint) ([]models.Like, error) {
	var likes []models.Like
	err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Find(&likes).Error
	if err != nil {
		return nil, err
	}
	return likes, nil
}

func (r *likeRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
