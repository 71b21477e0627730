package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/storage"
)

// Migrations holds the goose migrations for the quiz_kv table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const (
	// MigrationsDir is the directory inside Migrations.
	MigrationsDir = "migrations"
	// VersionTable is goose's bookkeeping table.
	VersionTable = "goose_db_version"
)

const (
	selectValueSQL = `SELECT value FROM quiz_kv WHERE key = $1`
	upsertValueSQL = `INSERT INTO quiz_kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteKeysSQL = `DELETE FROM quiz_kv WHERE key = ANY($1)`
)

// Store keeps the session key bag in a single Postgres table.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ storage.KV = (*Store)(nil)

// New creates a Postgres-backed KV. The quiz_kv table must exist (see Migrate).
func New(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_kv").Logger(),
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, selectValueSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("postgres read failed")
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

// SetMany upserts every pair in one transaction.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for k, v := range values {
			batch.Queue(upsertValueSQL, k, v)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert %d keys: %w", len(values), err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("keys", len(values)).Msg("postgres write failed")
		return err
	}
	s.logger.Debug().Int("keys", len(values)).Msg("keys written")
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, deleteKeysSQL, keys); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("postgres delete failed")
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate runs the embedded goose migrations against db.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(Migrations)
	defer goose.SetBaseFS(nil)
	goose.SetTableName(VersionTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, MigrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
