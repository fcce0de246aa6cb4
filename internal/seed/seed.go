// Package seed populates the database with development data, either generated
// with gofakeit or loaded from a YAML fixture. Posts go through the same bulk
// path as the API so seeded data obeys the same validation.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/repository"
	"scribe/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "Scribe!Passw0rd"

// Options sizes a generated data set.
type Options struct {
	Users           int
	Posts           int
	SubPostsPerPost int
	LikesPerPost    int
	// Seed makes the generated content reproducible; 0 picks a random one.
	Seed int64
}

// Summary counts what a seeding run created.
type Summary struct {
	Users    int
	Posts    int
	SubPosts int
	Likes    int
}

// Fixture is the YAML document accepted by SeedFixture.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
}

type FixtureUser struct {
	Username string        `yaml:"username"`
	Email    string        `yaml:"email"`
	Password string        `yaml:"password"`
	Posts    []FixturePost `yaml:"posts"`
}

type FixturePost struct {
	Title    string           `yaml:"title"`
	Body     string           `yaml:"body"`
	SubPosts []FixtureSubPost `yaml:"subposts"`
	// LikedBy lists usernames from the same fixture.
	LikedBy []string `yaml:"liked_by"`
}

type FixtureSubPost struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Seeder writes seed data through the repositories and the post service.
type Seeder struct {
	db    *gorm.DB
	users repository.UserRepository
	posts *service.PostService
}

func NewSeeder(db *gorm.DB) *Seeder {
	postRepo := repository.NewPostRepository(db)
	return &Seeder{
		db:    db,
		users: repository.NewUserRepository(db),
		posts: service.NewPostService(postRepo, repository.NewLikeRepository(db), nil),
	}
}

// ClearAll removes every row of the blog tables, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Like{}, &models.SubPost{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// SeedFake generates users and spreads opts.Posts posts across them.
func (s *Seeder) SeedFake(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.Users <= 0 {
		return sum, fmt.Errorf("at least one user is required")
	}

	faker := gofakeit.New(opts.Seed)
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return sum, fmt.Errorf("hash password: %w", err)
	}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u := &models.User{
			Username: fakeUsername(faker, i),
			Email:    fmt.Sprintf("user%d.%s", i, strings.ToLower(faker.Email())),
			Password: string(hash),
		}
		if err := s.users.Create(ctx, u); err != nil {
			return sum, fmt.Errorf("create user %q: %w", u.Username, err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	for i, u := range users {
		n := opts.Posts / len(users)
		if i < opts.Posts%len(users) {
			n++
		}
		if n == 0 {
			continue
		}

		inputs := make([]service.CreatePostInput, 0, n)
		for j := 0; j < n; j++ {
			in := service.CreatePostInput{
				Title: faker.Sentence(faker.Number(3, 8)),
				Body:  faker.Paragraph(faker.Number(1, 3), 4, 12, "\n\n"),
			}
			for k := 0; k < opts.SubPostsPerPost; k++ {
				in.SubPosts = append(in.SubPosts, service.SubPostInput{
					Title: faker.Sentence(faker.Number(2, 5)),
					Body:  faker.Paragraph(1, 3, 10, "\n\n"),
				})
			}
			inputs = append(inputs, in)
		}

		created, err := s.posts.BulkCreatePosts(ctx, u.ID, inputs)
		if err != nil {
			return sum, fmt.Errorf("create posts for %q: %w", u.Username, err)
		}
		sum.Posts += len(created)
		sum.SubPosts += len(created) * opts.SubPostsPerPost

		for _, p := range created {
			likes, err := s.likeRandomly(ctx, faker, users, p.ID, opts.LikesPerPost)
			if err != nil {
				return sum, err
			}
			sum.Likes += likes
		}
	}

	middleware.Logger.InfoContext(ctx, "seeded fake data",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("subposts", sum.SubPosts),
		slog.Int("likes", sum.Likes),
	)
	return sum, nil
}

func (s *Seeder) likeRandomly(ctx context.Context, faker *gofakeit.Faker, users []*models.User, postID uint, n int) (int, error) {
	if n > len(users) {
		n = len(users)
	}
	order := make([]int, len(users))
	for i := range order {
		order[i] = i
	}
	faker.ShuffleInts(order)

	for _, idx := range order[:n] {
		if _, err := s.posts.ToggleLike(ctx, users[idx].ID, postID); err != nil {
			return 0, fmt.Errorf("like post %d: %w", postID, err)
		}
	}
	return n, nil
}

func fakeUsername(faker *gofakeit.Faker, i int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(faker.Username()) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		base = "user"
	}
	suffix := fmt.Sprintf("_%d", i)
	if len(base)+len(suffix) > 30 {
		base = base[:30-len(suffix)]
	}
	return base + suffix
}

// LoadFixture decodes a YAML fixture.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &fx, nil
}

// SeedFixture creates the fixture's users, then their posts, then the likes.
// Each user's posts are one bulk insert, so an invalid post aborts that user's batch.
func (s *Seeder) SeedFixture(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	byName := make(map[string]*models.User, len(fx.Users))

	for _, fu := range fx.Users {
		password := fu.Password
		if password == "" {
			password = DefaultPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return sum, fmt.Errorf("hash password: %w", err)
		}
		u := &models.User{Username: fu.Username, Email: fu.Email, Password: string(hash)}
		if err := s.users.Create(ctx, u); err != nil {
			return sum, fmt.Errorf("create user %q: %w", fu.Username, err)
		}
		byName[fu.Username] = u
		sum.Users++
	}

	for _, fu := range fx.Users {
		author := byName[fu.Username]
		inputs := make([]service.CreatePostInput, 0, len(fu.Posts))
		for _, fp := range fu.Posts {
			in := service.CreatePostInput{Title: fp.Title, Body: fp.Body}
			for _, sp := range fp.SubPosts {
				in.SubPosts = append(in.SubPosts, service.SubPostInput{Title: sp.Title, Body: sp.Body})
			}
			inputs = append(inputs, in)
		}

		created, err := s.posts.BulkCreatePosts(ctx, author.ID, inputs)
		if err != nil {
			return sum, fmt.Errorf("create posts for %q: %w", fu.Username, err)
		}
		sum.Posts += len(created)

		for i, p := range created {
			sum.SubPosts += len(p.SubPosts)
			for _, name := range fu.Posts[i].LikedBy {
				liker, ok := byName[name]
				if !ok {
					return sum, fmt.Errorf("post %q liked by unknown user %q", p.Title, name)
				}
				if _, err := s.posts.ToggleLike(ctx, liker.ID, p.ID); err != nil {
					return sum, fmt.Errorf("like post %d: %w", p.ID, err)
				}
				sum.Likes++
			}
		}
	}
	return sum, nil
}
