package cachestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"

	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/types"
	"github.com/yungbote/skillquest-backend/internal/utils"
)

// Logical keys of the per-user cache slots.
const (
	KeyCachedProfile     = "cached_profile"
	KeyLastSyncTimestamp = "last_sync_timestamp"
)

// Store is the on-device fallback and warm cache: one serialized blob per
// (user, key), last-write-wins, no partial-field updates. Get returns
// (nil, nil) when the slot is empty.
type Store interface {
	Put(ctx context.Context, userID, key string, value []byte) error
	Get(ctx context.Context, userID, key string) ([]byte, error)
	Clear(ctx context.Context, userID string) error
}

type sqliteStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewSQLiteStore opens (or creates) the cache database at LOCAL_CACHE_PATH.
func NewSQLiteStore(baseLog *logger.Logger) (Store, error) {
	path := utils.GetEnv("LOCAL_CACHE_PATH", "data/skillquest_cache.db", baseLog)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %q: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache at %q: %w", path, err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, fmt.Errorf("failed to set cache journal mode: %w", err)
	}
	if err := db.Exec("PRAGMA busy_timeout=5000;").Error; err != nil {
		return nil, fmt.Errorf("failed to set cache busy timeout: %w", err)
	}
	return newWithDB(db, baseLog)
}

func newWithDB(db *gorm.DB, baseLog *logger.Logger) (Store, error) {
	if err := db.AutoMigrate(&types.CacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return &sqliteStore{db: db, log: baseLog.With("repo", "CacheStore")}, nil
}

func (s *sqliteStore) Put(ctx context.Context, userID, key string, value []byte) error {
	if userID == "" || key == "" {
		return fmt.Errorf("cache put requires user id and key")
	}
	entry := &types.CacheEntry{
		UserID:    userID,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("cache put %s/%s: %w", userID, key, err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, userID, key string) ([]byte, error) {
	if userID == "" || key == "" {
		return nil, fmt.Errorf("cache get requires user id and key")
	}
	var entry types.CacheEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s: %w", userID, key, err)
	}
	return entry.Value, nil
}

func (s *sqliteStore) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("cache clear requires user id")
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("cache clear %s: %w", userID, err)
	}
	return nil
}
