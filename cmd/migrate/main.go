package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/abhinavece/player-auction-backend/internal/infrastructure/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to configuration file")
		source     = flag.String("source", "file://migrations", "migration source URL")
		down       = flag.Bool("down", false, "roll back one migration instead of migrating up")
		steps      = flag.Int("steps", 0, "number of migrations to apply (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	m, err := migrate.New(*source, cfg.Database.URL)
	if err != nil {
		log.Fatalf("opening migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *down:
		err = m.Steps(-1)
	case *steps > 0:
		err = m.Steps(*steps)
	default:
		err = m.Up()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("no schema changes to apply")
		return
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("migrations applied")
}
