// Package database is the SQL resource store backend. Resources are stored
// as JSON rows keyed by (collection, key), which keeps the schema stable as
// resource shapes evolve with game updates.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/storage"
)

// resourceRow is the single table backing every resource kind.
type resourceRow struct {
	Collection string `gorm:"primaryKey;size:64"`
	Key        string `gorm:"primaryKey;size:256"`
	Data       []byte
	UpdatedAt  time.Time
}

func (resourceRow) TableName() string { return "resources" }

// NewStorage opens the database named by driver ("sqlite" or "postgres") and
// dsn and migrates the resources table.
func NewStorage(driver, dsn string, debug bool) (*storage.Storage, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	// Only log errors by default but enable full query logging in debug mode.
	log := logger.Default.LogMode(logger.Error)
	if debug {
		log = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := db.AutoMigrate(&resourceRow{}); err != nil {
		return nil, fmt.Errorf("error migrating resources table: %w", err)
	}

	return &storage.Storage{
		AccessControlList: &singletonRow[*storage.AccessControlListResource]{
			db: db, collection: "singleton", key: "access_control_list",
		},
		ChannelInfo: &singletonRow[*storage.ChannelInfoResource]{
			db: db, collection: "singleton", key: "channel_info",
		},
		LoginSettings: &singletonRow[*storage.LoginSettingsResource]{
			db: db, collection: "singleton", key: "login_settings",
		},
		SymbolCache: &singletonRow[*storage.SymbolCacheResource]{
			db: db, collection: "singleton", key: "symbol_cache",
		},
		Accounts: &collectionRows[game.XPlatformId, *storage.AccountResource]{
			db:         db,
			collection: "accounts",
			keyString:  game.XPlatformId.String,
			parseKey:   game.ParseXPlatformId,
		},
		Configs: &collectionRows[storage.ConfigKey, *storage.ConfigResource]{
			db:         db,
			collection: "configs",
			keyString:  storage.ConfigKey.String,
			parseKey:   storage.ParseConfigKey,
		},
		Documents: &collectionRows[storage.DocumentKey, *storage.DocumentResource]{
			db:         db,
			collection: "documents",
			keyString:  storage.DocumentKey.String,
			parseKey:   storage.ParseDocumentKey,
		},
		Closer: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("error while getting current connection: %w", err)
			}
			return sqlDB.Close()
		},
	}, nil
}

func getRow[V any](ctx context.Context, db *gorm.DB, collection, key string) (V, error) {
	var value V

	var row resourceRow
	err := db.WithContext(ctx).
		Where("collection = ? AND key = ?", collection, key).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return value, storage.ErrNotFound
		}
		return value, fmt.Errorf("querying %s/%s: %w", collection, key, err)
	}

	if err := json.Unmarshal(row.Data, &value); err != nil {
		return value, fmt.Errorf("parsing %s/%s: %w", collection, key, err)
	}
	return value, nil
}

func setRow(ctx context.Context, db *gorm.DB, collection, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serializing %s/%s: %w", collection, key, err)
	}

	row := resourceRow{Collection: collection, Key: key, Data: data}
	err = db.WithContext(ctx).
		Where("collection = ? AND key = ?", collection, key).
		Assign(map[string]interface{}{"data": data}).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("storing %s/%s: %w", collection, key, err)
	}
	return nil
}

func rowExists(ctx context.Context, db *gorm.DB, collection, key string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&resourceRow{}).
		Where("collection = ? AND key = ?", collection, key).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("querying %s/%s: %w", collection, key, err)
	}
	return count > 0, nil
}

func deleteRow(ctx context.Context, db *gorm.DB, collection, key string) error {
	err := db.WithContext(ctx).
		Where("collection = ? AND key = ?", collection, key).
		Delete(&resourceRow{}).Error
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, key, err)
	}
	return nil
}

type singletonRow[V any] struct {
	db         *gorm.DB
	collection string
	key        string
}

func (s *singletonRow[V]) Exists(ctx context.Context) (bool, error) {
	return rowExists(ctx, s.db, s.collection, s.key)
}

func (s *singletonRow[V]) Get(ctx context.Context) (V, error) {
	return getRow[V](ctx, s.db, s.collection, s.key)
}

func (s *singletonRow[V]) Set(ctx context.Context, value V) error {
	return setRow(ctx, s.db, s.collection, s.key, value)
}

func (s *singletonRow[V]) Delete(ctx context.Context) (V, error) {
	value, err := s.Get(ctx)
	if err != nil {
		return value, err
	}
	return value, deleteRow(ctx, s.db, s.collection, s.key)
}

type collectionRows[K comparable, V any] struct {
	db         *gorm.DB
	collection string
	keyString  func(K) string
	parseKey   func(string) (K, error)
}

func (c *collectionRows[K, V]) Keys(ctx context.Context) ([]K, error) {
	var rawKeys []string
	err := c.db.WithContext(ctx).
		Model(&resourceRow{}).
		Where("collection = ?", c.collection).
		Pluck("key", &rawKeys).Error
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.collection, err)
	}

	var keys []K
	for _, raw := range rawKeys {
		key, err := c.parseKey(raw)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *collectionRows[K, V]) Exists(ctx context.Context, key K) (bool, error) {
	return rowExists(ctx, c.db, c.collection, c.keyString(key))
}

func (c *collectionRows[K, V]) Get(ctx context.Context, key K) (V, error) {
	return getRow[V](ctx, c.db, c.collection, c.keyString(key))
}

func (c *collectionRows[K, V]) Set(ctx context.Context, key K, value V) error {
	return setRow(ctx, c.db, c.collection, c.keyString(key), value)
}

func (c *collectionRows[K, V]) Delete(ctx context.Context, key K) (V, error) {
	value, err := c.Get(ctx, key)
	if err != nil {
		return value, err
	}
	return value, deleteRow(ctx, c.db, c.collection, c.keyString(key))
}
