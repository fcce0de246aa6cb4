package repository

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"scribe/internal/models"
	"scribe/internal/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPostRepository_IncrementViews_SingleStatement(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "views_count"=views_count + $1 WHERE id = $2`)).
		WithArgs(1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT .*views_count.* FROM "posts" WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"views_count"}).AddRow(12))

	views, err := repo.IncrementViews(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_IncrementViews_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "views_count"=views_count + $1 WHERE id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := repo.IncrementViews(context.Background(), 99)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Update_LocksPostRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	title := "New title"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE "posts"."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(`UPDATE "posts" SET .*"title"=\$\d.* WHERE id = \$\d`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	plan, err := repo.Update(context.Background(), 3, models.PostChanges{Title: &title}, nil)
	require.NoError(t, err)
	assert.Nil(t, plan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Update_RollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	body := "b"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(`UPDATE "posts"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), 3, models.PostChanges{Body: &body}, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Update_EmptyPlanTouchesNoSubPosts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	title := "Same children"
	updates := observability.SubPostReconciliations.WithLabelValues("update")
	before := testutil.ToFloat64(updates)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE "posts"."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(`UPDATE "posts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "sub_posts" WHERE post_id = \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "title", "body"}).AddRow(11, 3, "a", "b"))
	mock.ExpectCommit()

	planner := func(existing []models.SubPost) models.SubPostPlan {
		require.Len(t, existing, 1)
		return models.SubPostPlan{Ignored: []uint{404}}
	}
	plan, err := repo.Update(context.Background(), 3, models.PostChanges{Title: &title}, planner)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.True(t, plan.Empty())
	assert.Equal(t, []uint{404}, plan.Ignored)
	assert.Equal(t, before, testutil.ToFloat64(updates))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_CreateAndGet(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "alice")

	post := seedPost(t, db, author, "Hello", "first", "second")
	require.NotZero(t, post.ID)

	got, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "alice", got.Author.Username)
	assert.Equal(t, int64(0), got.ViewsCount)
	assert.Equal(t, int64(0), got.LikesCount)
	require.Len(t, got.SubPosts, 2)
	assert.Equal(t, "first", got.SubPosts[0].Title)
	assert.Equal(t, "second", got.SubPosts[1].Title)

	_, err = repo.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	ok, err := repo.Exists(context.Background(), post.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	authorID, err := repo.AuthorID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, author.ID, authorID)
}

func TestPostRepository_ListNewestFirst(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "bob")
	ctx := context.Background()

	for _, title := range []string{"p1", "p2", "p3"} {
		seedPost(t, db, author, title)
	}

	posts, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p3", posts[0].Title)
	assert.Equal(t, "p2", posts[1].Title)

	posts, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].Title)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestPostRepository_CreateBulk(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "carol")
	ctx := context.Background()

	posts := []*models.Post{
		{Title: "a", Body: "a", AuthorID: author.ID, SubPosts: []models.SubPost{{Title: "s", Body: "s"}}},
		{Title: "b", Body: "b", AuthorID: author.ID},
		{Title: "c", Body: "c", AuthorID: author.ID},
	}
	require.NoError(t, repo.CreateBulk(ctx, posts))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, posts[0].ID, posts[0].SubPosts[0].PostID)

	got, err := repo.GetByIDs(ctx, []uint{posts[2].ID, posts[0].ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Title)
	assert.Len(t, got[1].SubPosts, 1)
}

func TestPostRepository_CreateBulk_RollsBackOnFailure(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "dave")
	ctx := context.Background()

	posts := []*models.Post{
		{Title: "ok", Body: "ok", AuthorID: author.ID},
		{Title: "orphan", Body: "no such author", AuthorID: 424242},
	}
	assert.Error(t, repo.CreateBulk(ctx, posts))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// planByID is a minimal reconciliation used to exercise the transactional apply path.
func planByID(incoming []models.SubPostDraft) SubPostPlanner {
	return func(existing []models.SubPost) models.SubPostPlan {
		var plan models.SubPostPlan
		owned := map[uint]bool{}
		for _, e := range existing {
			owned[e.ID] = true
		}
		kept := map[uint]bool{}
		for _, d := range incoming {
			switch {
			case d.ID == 0:
				plan.Creates = append(plan.Creates, d)
			case owned[d.ID]:
				plan.Updates = append(plan.Updates, d)
				kept[d.ID] = true
			default:
				plan.Ignored = append(plan.Ignored, d.ID)
			}
		}
		for _, e := range existing {
			if !kept[e.ID] {
				plan.Deletes = append(plan.Deletes, e.ID)
			}
		}
		return plan
	}
}

func TestPostRepository_UpdateReconcilesSubPosts(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "erin")
	ctx := context.Background()

	post := seedPost(t, db, author, "Post", "A", "B")
	subA, subB := post.SubPosts[0], post.SubPosts[1]
	before, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	title := "Post v2"
	plan, err := repo.Update(ctx, post.ID, models.PostChanges{Title: &title}, planByID([]models.SubPostDraft{
		{ID: subA.ID, Title: "A2", Body: "A2 body"},
		{Title: "C", Body: "C body"},
	}))
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, []uint{subB.ID}, plan.Deletes)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Post v2", got.Title)
	assert.True(t, got.UpdatedAt.After(before.UpdatedAt))
	require.Len(t, got.SubPosts, 2)
	assert.Equal(t, subA.ID, got.SubPosts[0].ID)
	assert.Equal(t, "A2", got.SubPosts[0].Title)
	assert.Equal(t, "C", got.SubPosts[1].Title)

	var count int64
	require.NoError(t, db.Model(&models.SubPost{}).Where("id = ?", subB.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPostRepository_UpdateWithoutPlannerKeepsSubPosts(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "frank")
	ctx := context.Background()

	post := seedPost(t, db, author, "Post", "A", "B")
	body := "new body"
	_, err := repo.Update(ctx, post.ID, models.PostChanges{Body: &body}, nil)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "new body", got.Body)
	assert.Len(t, got.SubPosts, 2)

	_, err = repo.Update(ctx, post.ID, models.PostChanges{}, planByID(nil))
	require.NoError(t, err)
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SubPosts)
}

func TestPostRepository_UpdateMissing(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)

	_, err := repo.Update(context.Background(), 404, models.PostChanges{}, nil)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "gina")
	ctx := context.Background()

	post := seedPost(t, db, author, "Doomed", "A")
	_, err := NewLikeRepository(db).Toggle(ctx, post.ID, author.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))

	var subs, likes int64
	require.NoError(t, db.Model(&models.SubPost{}).Where("post_id = ?", post.ID).Count(&subs).Error)
	require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes).Error)
	assert.Zero(t, subs)
	assert.Zero(t, likes)

	assert.ErrorIs(t, repo.Delete(ctx, post.ID), gorm.ErrRecordNotFound)
}

func TestPostRepository_ConcurrentViews(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "hank")
	ctx := context.Background()

	post := seedPost(t, db, author, "Popular")
	before, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementViews(ctx, post.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	after, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), after.ViewsCount)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))

	_, err = repo.IncrementViews(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
