package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/database/seeders"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run tools/migrate.go migrate   - Create or update the schema")
		fmt.Println("  go run tools/migrate.go seed      - Migrate, then insert the demo vessels")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != "postgres" {
		fmt.Println("❌ Migrations only apply to DB_DRIVER=postgres")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate", "seed":
		fmt.Println("🚀 Running database migrations...")
		db, err := database.Open(cfg.Database)
		if err != nil {
			fmt.Printf("❌ Connection failed: %v\n", err)
			os.Exit(1)
		}
		if err := database.Migrate(db); err != nil {
			fmt.Printf("❌ Migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Migration completed successfully!")

		if command == "seed" {
			seeders.SeedVessels(context.Background(), database.NewStore(db), time.Now())
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: migrate, seed")
	}
}
