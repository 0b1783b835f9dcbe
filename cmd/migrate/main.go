package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/apex-chat/internal/config"
	"github.com/Rrens/apex-chat/internal/logging"
	"github.com/Rrens/apex-chat/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	steps := flag.Int("steps", 1, "number of migrations to roll back with \"down\"")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [-steps N] up|down|version\n")
	}
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if _, err := logging.Setup(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	source := cfg.Backend.MigrationsPath

	log.Info().Str("host", cfg.Database.Host).Int("port", cfg.Database.Port).Msg("Connecting to database")

	switch flag.Arg(0) {
	case "", "up":
		err = postgres.RunMigrations(dsn, source)
	case "down":
		err = postgres.RollbackMigrations(dsn, source, *steps)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = postgres.MigrationVersion(dsn, source)
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
