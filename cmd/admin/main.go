// Command admin manages staff accounts and audits cached comment scores.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"newsadvance/internal/config"
	"newsadvance/internal/database"
	"newsadvance/internal/repository"
	"newsadvance/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <username>   - Grant moderator privileges")
	fmt.Println("  go run ./cmd/admin demote <username>    - Revoke moderator privileges")
	fmt.Println("  go run ./cmd/admin list-staff           - List all staff users")
	fmt.Println("  go run ./cmd/admin verify-scores        - Report comments whose cached score drifted")
	fmt.Println("  go run ./cmd/admin repair-scores        - Recompute drifted cached scores from votes")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <username>\n", command)
			os.Exit(1)
		}
		setStaff(ctx, db, os.Args[2], command == "promote")
	case "list-staff":
		listStaff(ctx, db)
	case "verify-scores":
		verifyScores(ctx, db, false)
	case "repair-scores":
		verifyScores(ctx, db, true)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func setStaff(ctx context.Context, db *gorm.DB, username string, staff bool) {
	user, err := repository.NewUserRepository(db).SetStaff(ctx, username, staff)
	if err != nil {
		log.Fatalf("Failed to update %s: %v", username, err)
	}
	if staff {
		fmt.Printf("Promoted %s (ID: %d) to staff\n", user.Username, user.ID)
	} else {
		fmt.Printf("Demoted %s (ID: %d) from staff\n", user.Username, user.ID)
	}
}

func listStaff(ctx context.Context, db *gorm.DB) {
	staff, err := repository.NewUserRepository(db).ListStaff(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch staff: %v", err)
	}
	if len(staff) == 0 {
		fmt.Println("No staff users found")
		return
	}

	fmt.Println("Current staff:")
	fmt.Println("-------------------------------------")
	for _, u := range staff {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", u.ID, u.Username, u.Email)
	}
	fmt.Println("-------------------------------------")
}

func verifyScores(ctx context.Context, db *gorm.DB, repair bool) {
	ledger := service.NewVoteLedger(repository.NewVoteRepository(db))
	drift, err := ledger.VerifyAll(ctx, repair)
	if err != nil {
		log.Fatalf("Score audit failed: %v", err)
	}
	if len(drift) == 0 {
		fmt.Println("All cached scores match their votes")
		return
	}
	for _, d := range drift {
		fmt.Printf("comment %d: cached %d, votes %d\n", d.CommentID, d.Cached, d.Actual)
	}
	if repair {
		fmt.Printf("Repaired %d comments\n", len(drift))
	} else {
		fmt.Printf("%d comments drifted; run repair-scores to fix\n", len(drift))
		os.Exit(2)
	}
}
