// Command seed populates the database with demo articles, users and comment
// threads.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"newsadvance/internal/config"
	"newsadvance/internal/database"
	"newsadvance/internal/middleware"
	"newsadvance/internal/models"
	"newsadvance/internal/seed"
)

func main() {
	users := flag.Int("users", 20, "Number of users to create")
	articles := flag.Int("articles", 10, "Number of articles to create")
	topLevel := flag.Int("top-level", 8, "Top-level comments per article")
	maxDepth := flag.Int("max-depth", 6, "Deepest reply level to generate")
	maxReplies := flag.Int("max-replies", 3, "Most replies under one comment")
	voteRate := flag.Float64("vote-rate", 0.3, "Chance that a user votes on a comment")
	randSeed := flag.Int64("rand-seed", 0, "Random seed (0 picks one)")
	clean := flag.Bool("clean", true, "Clean database before seeding")
	fixture := flag.String("fixture", "", "Load a YAML fixture instead of random data")
	tokens := flag.Bool("tokens", false, "Print a one-day bearer token for every seeded user")
	flag.Parse()

	log.Println("Comment seeder")
	log.Println("==============")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := seed.Options{
		Users:      *users,
		Articles:   *articles,
		TopLevel:   *topLevel,
		MaxDepth:   *maxDepth,
		MaxReplies: *maxReplies,
		VoteRate:   *voteRate,
		RandSeed:   *randSeed,
		Clean:      *clean,
	}

	var summary seed.Summary
	if *fixture != "" {
		log.Printf("Applying fixture %s", *fixture)
		fx, err := seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		summary, err = seed.ApplyFixture(ctx, db, fx, opts)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		log.Printf("Target: %d users, %d articles, clean=%v", *users, *articles, *clean)
		summary, err = seed.Random(ctx, db, opts)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	log.Printf("Seeded %d users, %d articles, %d comments, %d votes",
		summary.Users, summary.Articles, summary.Comments, summary.Votes)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)

	if *tokens {
		verifier := middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
		var seeded []models.User
		if err := db.WithContext(ctx).Order("id").Find(&seeded).Error; err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		for _, u := range seeded {
			tok, err := verifier.Issue(u.ID, 24*time.Hour)
			if err != nil {
				log.Fatalf("Failed to issue token: %v", err)
			}
			log.Printf("%-20s staff=%-5v %s", u.Username, u.IsStaff, tok)
		}
	}
}
