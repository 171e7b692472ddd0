package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/store"
)

func main() {
	_ = godotenv.Load()

	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "SQLite DSN or PostgreSQL connection string")
	down := flag.Bool("down", false, "Roll back every migration")
	version := flag.Bool("version", false, "Print the current schema version and exit")
	flag.Parse()

	if *dbURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	logger := slog.With("driver", store.DriverFor(*dbURL))

	switch {
	case *version:
		v, dirty, err := store.MigrationVersion(*dbURL)
		if err != nil {
			logger.Error("failed to read schema version", "err", err)
			os.Exit(1)
		}
		fmt.Printf("version: %d dirty: %t\n", v, dirty)
		return

	case *down:
		if err := store.MigrateDown(*dbURL); err != nil {
			logger.Error("rollback failed", "err", err)
			os.Exit(1)
		}
		fmt.Println("migrations rolled back")

	default:
		if err := store.MigrateUp(*dbURL); err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
		fmt.Println("migrations complete")
	}
}
