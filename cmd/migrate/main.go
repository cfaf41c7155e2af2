package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"boilerplate/internal/config"
	"boilerplate/internal/infra/db"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dsn := flag.String("dsn", cfg.PostgresDSN(), "PostgreSQL DSN (default: DATABASE_URL or POSTGRES_*)")
	flag.Parse()
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sqlDB, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer sqlDB.Close()

	switch flag.Arg(0) {
	case "up":
		err = db.MigrateUp(ctx, sqlDB)
	case "down":
		err = db.MigrateDown(ctx, sqlDB)
	case "status":
		err = db.MigrateStatus(ctx, sqlDB)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
