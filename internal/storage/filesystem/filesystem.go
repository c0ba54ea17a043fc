// Package filesystem is the local JSON-file resource store backend. Each
// singleton resource is one file under the database root; each collection is
// a directory of files named by encoded key. Reads go through an in-process
// cache unless the operator disables it to make manual JSON edits take
// effect immediately.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/storage"
)

const fileExtension = ".json"

// NewStorage opens a filesystem store rooted at databaseDir, creating the
// collection directories if needed.
func NewStorage(databaseDir string, cacheEnabled bool) (*storage.Storage, error) {
	info, err := os.Stat(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("database folder %s: %w", databaseDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("database path %s is not a directory", databaseDir)
	}

	for _, sub := range []string{"accounts", "configs", "documents"} {
		if err := os.MkdirAll(filepath.Join(databaseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", sub, err)
		}
	}

	var cache *gocache.Cache
	if cacheEnabled {
		cache = gocache.New(gocache.NoExpiration, 10*time.Minute)
	}

	return &storage.Storage{
		AccessControlList: &singletonFile[*storage.AccessControlListResource]{
			path:  filepath.Join(databaseDir, "access_control_list"+fileExtension),
			cache: cache,
		},
		ChannelInfo: &singletonFile[*storage.ChannelInfoResource]{
			path:  filepath.Join(databaseDir, "channel_info"+fileExtension),
			cache: cache,
		},
		LoginSettings: &singletonFile[*storage.LoginSettingsResource]{
			path:  filepath.Join(databaseDir, "login_settings"+fileExtension),
			cache: cache,
		},
		SymbolCache: &singletonFile[*storage.SymbolCacheResource]{
			path:  filepath.Join(databaseDir, "symbol_cache"+fileExtension),
			cache: cache,
		},
		Accounts: &collectionDir[game.XPlatformId, *storage.AccountResource]{
			dir:       filepath.Join(databaseDir, "accounts"),
			cache:     cache,
			keyString: game.XPlatformId.String,
			parseKey:  game.ParseXPlatformId,
		},
		Configs: &collectionDir[storage.ConfigKey, *storage.ConfigResource]{
			dir:       filepath.Join(databaseDir, "configs"),
			cache:     cache,
			keyString: storage.ConfigKey.String,
			parseKey:  storage.ParseConfigKey,
		},
		Documents: &collectionDir[storage.DocumentKey, *storage.DocumentResource]{
			dir:       filepath.Join(databaseDir, "documents"),
			cache:     cache,
			keyString: storage.DocumentKey.String,
			parseKey:  storage.ParseDocumentKey,
		},
	}, nil
}

func readResource[V any](path string, cache *gocache.Cache) (V, error) {
	var value V

	if cache != nil {
		if cached, ok := cache.Get(path); ok {
			return cached.(V), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return value, storage.ErrNotFound
		}
		return value, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cache != nil {
		cache.Set(path, value, gocache.NoExpiration)
	}
	return value, nil
}

func writeResource(path string, value interface{}, cache *gocache.Cache) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing %s: %w", path, err)
	}

	// Write-then-rename so a crash mid-write never leaves a torn resource.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	if cache != nil {
		cache.Set(path, value, gocache.NoExpiration)
	}
	return nil
}

func deleteResource(path string, cache *gocache.Cache) error {
	if cache != nil {
		cache.Delete(path)
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

type singletonFile[V any] struct {
	path  string
	cache *gocache.Cache
}

func (s *singletonFile[V]) Exists(_ context.Context) (bool, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *singletonFile[V]) Get(_ context.Context) (V, error) {
	return readResource[V](s.path, s.cache)
}

func (s *singletonFile[V]) Set(_ context.Context, value V) error {
	return writeResource(s.path, value, s.cache)
}

func (s *singletonFile[V]) Delete(ctx context.Context) (V, error) {
	value, err := s.Get(ctx)
	if err != nil {
		return value, err
	}
	return value, deleteResource(s.path, s.cache)
}

type collectionDir[K comparable, V any] struct {
	dir       string
	cache     *gocache.Cache
	keyString func(K) string
	parseKey  func(string) (K, error)
}

func (c *collectionDir[K, V]) path(key K) string {
	return filepath.Join(c.dir, c.keyString(key)+fileExtension)
}

func (c *collectionDir[K, V]) Keys(_ context.Context) ([]K, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.dir, err)
	}

	var keys []K
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExtension) {
			continue
		}

		key, err := c.parseKey(strings.TrimSuffix(name, fileExtension))
		if err != nil {
			// A stray file in the collection directory is not a store
			// failure; skip it.
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *collectionDir[K, V]) Exists(_ context.Context, key K) (bool, error) {
	if _, err := os.Stat(c.path(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *collectionDir[K, V]) Get(_ context.Context, key K) (V, error) {
	return readResource[V](c.path(key), c.cache)
}

func (c *collectionDir[K, V]) Set(_ context.Context, key K, value V) error {
	return writeResource(c.path(key), value, c.cache)
}

func (c *collectionDir[K, V]) Delete(ctx context.Context, key K) (V, error) {
	value, err := c.Get(ctx, key)
	if err != nil {
		return value, err
	}
	return value, deleteResource(c.path(key), c.cache)
}
