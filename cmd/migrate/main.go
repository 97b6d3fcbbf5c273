package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/medstock/medstock-backend/pkg/config"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/logger"
)

func main() {
	var migrationsPath string
	flag.StringVar(&migrationsPath, "path", "", "path to migrations directory (default: from config)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	cfg, err := config.Load("medstock-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("migrate", cfg.Server.Environment)

	if migrationsPath == "" {
		migrationsPath = cfg.Database.MigrationsPath
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationsPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}

	switch command {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("migration rollback failed")
		}
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read migration version")
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [-path dir] <up|down|version>")
}
