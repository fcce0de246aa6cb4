package repository

import (
	"context"
	"time"

	"scribe/internal/models"
	"scribe/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubPostPlanner diffs a post's current children into a reconciliation plan.
// It runs inside the update transaction, after the post row is locked.
type SubPostPlanner func(existing []models.SubPost) models.SubPostPlan

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	CreateBulk(ctx context.Context, posts []*models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Post, error)
	Exists(ctx context.Context, id uint) (bool, error)
	AuthorID(ctx context.Context, id uint) (uint, error)
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id uint, changes models.PostChanges, planner SubPostPlanner) (*models.SubPostPlan, error)
	Delete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and its sub-posts in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createPost(tx, post)
	})
}

// CreateBulk inserts every post with its sub-posts; any failure rolls back all of them.
func (r *postRepository) CreateBulk(ctx context.Context, posts []*models.Post) (err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "CreateBulk", "posts")
	defer func() { observability.EndSpan(span, err) }()

	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, post := range posts {
			if err := createPost(tx, post); err != nil {
				return err
			}
		}
		return nil
	})
}

func createPost(tx *gorm.DB, post *models.Post) error {
	if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
		return err
	}
	if len(post.SubPosts) == 0 {
		return nil
	}
	for i := range post.SubPosts {
		post.SubPosts[i].PostID = post.ID
	}
	return tx.Create(&post.SubPosts).Error
}

// withLikesCount selects posts with their like count computed in the same query.
func withLikesCount(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count")
}

func (r *postRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Scopes(withLikesCount).
		Preload("Author").
		Preload("SubPosts", subPostOrder)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.withDetails(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByIDs loads posts in the order of ids; missing ids are skipped.
func (r *postRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	var posts []models.Post
	if err := r.withDetails(r.db.WithContext(ctx)).Where("posts.id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(posts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postRepository) AuthorID(ctx context.Context, id uint) (uint, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id", "author_id").First(&post, id).Error; err != nil {
		return 0, err
	}
	return post.AuthorID, nil
}

// List returns a page of posts, newest first.
func (r *postRepository) List(ctx context.Context, limit, offset int) (posts []models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "List", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("list", "posts")()

	err = r.withDetails(readDB(r.db).WithContext(ctx)).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Post{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Update applies changes to the post and, when planner is non-nil, reconciles its
// sub-posts, all in one transaction with the post row locked.
func (r *postRepository) Update(ctx context.Context, id uint, changes models.PostChanges, planner SubPostPlanner) (plan *models.SubPostPlan, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "Update", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("update", "posts")()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Post
		if err := forUpdate(tx).Select("id").First(&locked, id).Error; err != nil {
			return err
		}

		now := time.Now()
		fields := map[string]interface{}{"updated_at": now}
		if changes.Title != nil {
			fields["title"] = *changes.Title
		}
		if changes.Body != nil {
			fields["body"] = *changes.Body
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}

		if planner == nil {
			return nil
		}

		var existing []models.SubPost
		if err := subPostOrder(tx).Where("post_id = ?", id).Find(&existing).Error; err != nil {
			return err
		}

		p := planner(existing)
		if err := applySubPostPlan(tx, id, p, now); err != nil {
			return err
		}
		plan = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func applySubPostPlan(tx *gorm.DB, postID uint, plan models.SubPostPlan, now time.Time) error {
	if plan.Empty() {
		return nil
	}
	if len(plan.Deletes) > 0 {
		if err := tx.Where("post_id = ? AND id IN ?", postID, plan.Deletes).Delete(&models.SubPost{}).Error; err != nil {
			return err
		}
	}

	for _, u := range plan.Updates {
		err := tx.Model(&models.SubPost{}).
			Where("id = ? AND post_id = ?", u.ID, postID).
			Updates(map[string]interface{}{
				"title":      u.Title,
				"body":       u.Body,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
	}

	if len(plan.Creates) > 0 {
		subs := make([]models.SubPost, 0, len(plan.Creates))
		for _, c := range plan.Creates {
			subs = append(subs, models.SubPost{PostID: postID, Title: c.Title, Body: c.Body})
		}
		if err := tx.Create(&subs).Error; err != nil {
			return err
		}
	}

	observability.SubPostReconciliations.WithLabelValues("update").Add(float64(len(plan.Updates)))
	observability.SubPostReconciliations.WithLabelValues("create").Add(float64(len(plan.Creates)))
	observability.SubPostReconciliations.WithLabelValues("delete").Add(float64(len(plan.Deletes)))
	return nil
}

// Delete removes the post with its likes and sub-posts in one transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.SubPost{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// IncrementViews bumps views_count in a single statement and returns the new value.
// It does not touch updated_at.
func (r *postRepository) IncrementViews(ctx context.Context, id uint) (views int64, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "IncrementViews", "posts")
	defer func() { observability.EndSpan(span, err) }()

	db := r.db.WithContext(ctx)
	res := db.Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	if err := db.Model(&models.Post{}).Where("id = ?", id).Select("views_count").Scan(&views).Error; err != nil {
		return 0, err
	}
	return views, nil
}
