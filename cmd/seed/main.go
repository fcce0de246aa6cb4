// Command seed fills the database with generated or fixture data.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"scribe/internal/config"
	"scribe/internal/database"
	"scribe/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 50, "Number of posts to create")
	subPosts := flag.Int("subposts", 2, "Sub-posts per generated post")
	likes := flag.Int("likes", 3, "Likes per generated post")
	fixture := flag.String("fixture", "", "YAML fixture to load instead of generated data")
	shouldClean := flag.Bool("clean", false, "Delete existing blog data first")
	randSeed := flag.Int64("seed", 0, "Random seed for generated content (0 = random)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var sum seed.Summary
	if *fixture != "" {
		f, err := os.Open(*fixture)
		if err != nil {
			log.Fatalf("Failed to open fixture: %v", err)
		}
		fx, err := seed.LoadFixture(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("Failed to read fixture: %v", err)
		}
		if sum, err = s.SeedFixture(ctx, fx); err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		sum, err = s.SeedFake(ctx, seed.Options{
			Users:           *numUsers,
			Posts:           *numPosts,
			SubPostsPerPost: *subPosts,
			LikesPerPost:    *likes,
			Seed:            *randSeed,
		})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Generated users share the password: %s", seed.DefaultPassword)
	}

	log.Printf("Seeded %d users, %d posts, %d sub-posts, %d likes", sum.Users, sum.Posts, sum.SubPosts, sum.Likes)
}
