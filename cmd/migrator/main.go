package main

import (
	"context"
	"database/sql"
	"flag"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/kbc-quiz/internal/config"
	"github.com/gokatarajesh/kbc-quiz/internal/storage/pgstore"
)

func main() {
	command := flag.String("command", "up", "Migration command: up, down, or status")
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	pg := cfg.Postgres

	// Connect through pgx's database/sql driver, which goose expects.
	connCfg, err := pgx.ParseConfig(pg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid postgres configuration")
	}
	db := stdlib.OpenDB(*connCfg)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Str("host", pg.Host).Int("port", pg.Port).Msg("failed to ping database")
	}

	log.Info().
		Str("host", pg.Host).
		Int("port", pg.Port).
		Str("database", pg.Database).
		Msg("connected to database")

	if err := run(ctx, db, *command); err != nil {
		log.Fatal().Err(err).Str("command", *command).Msg("migration failed")
	}
}

func run(ctx context.Context, db *sql.DB, command string) error {
	switch command {
	case "up":
		if err := pgstore.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info().Msg("migrations applied successfully")
	case "down":
		if err := configureGoose(); err != nil {
			return err
		}
		if err := goose.DownContext(ctx, db, pgstore.MigrationsDir); err != nil {
			return err
		}
		log.Info().Msg("migrations rolled back successfully")
	case "status":
		if err := configureGoose(); err != nil {
			return err
		}
		return goose.StatusContext(ctx, db, pgstore.MigrationsDir)
	default:
		log.Fatal().Str("command", command).Msg("unknown command. Use: up, down, or status")
	}
	return nil
}

func configureGoose() error {
	goose.SetBaseFS(pgstore.Migrations)
	goose.SetTableName(pgstore.VersionTable)
	return goose.SetDialect("postgres")
}
