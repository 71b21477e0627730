package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"kbc-quiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Storage  Storage
	Postgres Postgres
	Redis    Redis
	SQLite   SQLite
	Quiz     Quiz
}

// Storage selects the session backend.
type Storage struct {
	Driver    string `env:"STORAGE_DRIVER" envDefault:"memory"`
	KeyPrefix string `env:"STORAGE_KEY_PREFIX" envDefault:"kbc_quiz_"`
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:"quiz"`
	Password string `env:"PG_PASSWORD" envDefault:"quiz"`
	Database string `env:"PG_DATABASE" envDefault:"kbc_quiz"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"4"`
}

// DSN renders the keyword/value connection string understood by pgx.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis holds cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"4"`
}

// SQLite points at the on-disk session file.
type SQLite struct {
	Path string `env:"SQLITE_PATH" envDefault:"kbc_quiz.db"`
}

// Quiz groups gameplay settings.
type Quiz struct {
	BatchSize             int           `env:"QUIZ_BATCH_SIZE" envDefault:"10"`
	FeedbackDelay         time.Duration `env:"QUIZ_FEEDBACK_DELAY" envDefault:"1500ms"`
	BankPath              string        `env:"QUIZ_BANK_PATH" envDefault:""`
	PhoneFriendConfidence float64       `env:"QUIZ_PHONE_FRIEND_CONFIDENCE" envDefault:"0.8"`
	// Seed fixes lifeline randomness; 0 seeds from the clock.
	Seed int64 `env:"QUIZ_SEED" envDefault:"0"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	switch c.Storage.Driver {
	case "memory", "redis", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Quiz.BatchSize <= 0 {
		return fmt.Errorf("QUIZ_BATCH_SIZE must be positive, got %d", c.Quiz.BatchSize)
	}
	if c.Quiz.PhoneFriendConfidence <= 0 || c.Quiz.PhoneFriendConfidence > 1 {
		return fmt.Errorf("QUIZ_PHONE_FRIEND_CONFIDENCE must be in (0,1], got %v", c.Quiz.PhoneFriendConfidence)
	}
	return nil
}
