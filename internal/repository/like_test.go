package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"scribe/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLikeRepository_Toggle_ConditionalInsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "likes" .* ON CONFLICT \("post_id","user_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "likes" WHERE post_id = \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	res, err := repo.Toggle(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_Toggle_DeletesWhenInsertSkipped(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "likes" .* ON CONFLICT \("post_id","user_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`DELETE FROM "likes" WHERE post_id = \$1 AND user_id = \$2`).
		WithArgs(5, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "likes" WHERE post_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	res, err := repo.Toggle(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Zero(t, res.LikesCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_Toggle_PostDeletedMidway(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "likes"`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "fk_likes_post"})
	mock.ExpectRollback()

	res, err := repo.Toggle(context.Background(), 5, 9)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_Toggle_MissingPostSQLite(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewLikeRepository(db)
	user := seedUser(t, db, "alice")

	_, err := repo.Toggle(context.Background(), 999, user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Like{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLikeRepository_ToggleTwice(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewLikeRepository(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	post := seedPost(t, db, alice, "Likeable")
	ctx := context.Background()

	res, err := repo.Toggle(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.LikeToggleResult{Liked: true, LikesCount: 1}, res)

	res, err = repo.Toggle(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.LikeToggleResult{Liked: true, LikesCount: 2}, res)

	res, err = repo.Toggle(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.LikeToggleResult{Liked: false, LikesCount: 1}, res)

	got, err := NewPostRepository(db).GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikesCount)
}

func TestLikeRepository_ConcurrentTogglesNeverDuplicate(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewLikeRepository(db)
	user := seedUser(t, db, "racer")
	post := seedPost(t, db, user, "Contended")
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Toggle(ctx, post.ID, user.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := repo.CountByPost(ctx, post.ID)
	require.NoError(t, err)
	// An even number of toggles from one user lands back on "not liked".
	assert.Zero(t, count)
}

func TestLikeRepository_CreateDuplicateIsConflict(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewLikeRepository(db)
	user := seedUser(t, db, "dup")
	post := seedPost(t, db, user, "Once")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Like{PostID: post.ID, UserID: user.ID}))

	err := repo.Create(ctx, &models.Like{PostID: post.ID, UserID: user.ID})
	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeConflict, appErr.Code)
}

func TestLikeRepository_ListByPost(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewLikeRepository(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	post := seedPost(t, db, alice, "Listed")
	ctx := context.Background()

	_, err := repo.Toggle(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	_, err = repo.Toggle(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	likes, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, likes, 2)
	assert.Equal(t, "bob", likes[0].User.Username)
	assert.Equal(t, "alice", likes[1].User.Username)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres fk", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite unique", errors.New("UNIQUE constraint failed: likes.post_id, likes.user_id"), true},
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres fk", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), true},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), true},
		{"gorm translated", gorm.ErrForeignKeyViolated, true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isForeignKeyViolation(tt.err))
		})
	}
}
