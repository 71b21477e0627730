package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gokatarajesh/kbc-quiz/internal/storage"
)

type entry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:128"`
	Value     string `gorm:"column:entry_value;not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string { return "kv_entries" }

// Store keeps the session key bag in a local SQLite file.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

var _ storage.KV = (*Store)(nil)

// Open opens (creating if needed) the SQLite file at path and migrates the kv table.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate kv table: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "sqlite_kv").Str("path", path).Logger(),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var rows []entry
	res := s.db.WithContext(ctx).Where("entry_key = ?", key).Limit(1).Find(&rows)
	if res.Error != nil {
		s.logger.Warn().Err(res.Error).Str("key", key).Msg("sqlite read failed")
		return "", false, fmt.Errorf("select %s: %w", key, res.Error)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

// SetMany upserts every pair in one transaction.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k, v := range values {
			row := entry{Key: k, Value: v, UpdatedAt: now}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "entry_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("keys", len(values)).Msg("sqlite write failed")
		return err
	}
	s.logger.Debug().Int("keys", len(values)).Msg("keys written")
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("entry_key IN ?", keys).Delete(&entry{}).Error; err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("sqlite delete failed")
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
