// Package redisstore is the remote key-value resource store backend, for
// deployments where several relay instances share one resource database.
// Values are stored as JSON under "nexus:<collection>:<key>".
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/storage"
)

const keyPrefix = "nexus"

// NewStorage connects to the redis instance described by url (redis://...)
// and verifies the connection before returning.
func NewStorage(ctx context.Context, url string) (*storage.Storage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStorageWithClient(client), nil
}

// NewStorageWithClient wraps an existing client. Used by tests.
func NewStorageWithClient(client *redis.Client) *storage.Storage {
	return &storage.Storage{
		AccessControlList: &singletonKey[*storage.AccessControlListResource]{
			client: client, key: redisKey("singleton", "access_control_list"),
		},
		ChannelInfo: &singletonKey[*storage.ChannelInfoResource]{
			client: client, key: redisKey("singleton", "channel_info"),
		},
		LoginSettings: &singletonKey[*storage.LoginSettingsResource]{
			client: client, key: redisKey("singleton", "login_settings"),
		},
		SymbolCache: &singletonKey[*storage.SymbolCacheResource]{
			client: client, key: redisKey("singleton", "symbol_cache"),
		},
		Accounts: &collectionKeys[game.XPlatformId, *storage.AccountResource]{
			client:     client,
			collection: "accounts",
			keyString:  game.XPlatformId.String,
			parseKey:   game.ParseXPlatformId,
		},
		Configs: &collectionKeys[storage.ConfigKey, *storage.ConfigResource]{
			client:     client,
			collection: "configs",
			keyString:  storage.ConfigKey.String,
			parseKey:   storage.ParseConfigKey,
		},
		Documents: &collectionKeys[storage.DocumentKey, *storage.DocumentResource]{
			client:     client,
			collection: "documents",
			keyString:  storage.DocumentKey.String,
			parseKey:   storage.ParseDocumentKey,
		},
		Closer: client.Close,
	}
}

func redisKey(collection, key string) string {
	return keyPrefix + ":" + collection + ":" + key
}

func getJSON[V any](ctx context.Context, client *redis.Client, key string) (V, error) {
	var value V

	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, storage.ErrNotFound
		}
		return value, fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("parsing %s: %w", key, err)
	}
	return value, nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serializing %s: %w", key, err)
	}
	if err := client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

type singletonKey[V any] struct {
	client *redis.Client
	key    string
}

func (s *singletonKey[V]) Exists(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", s.key, err)
	}
	return n > 0, nil
}

func (s *singletonKey[V]) Get(ctx context.Context) (V, error) {
	return getJSON[V](ctx, s.client, s.key)
}

func (s *singletonKey[V]) Set(ctx context.Context, value V) error {
	return setJSON(ctx, s.client, s.key, value)
}

func (s *singletonKey[V]) Delete(ctx context.Context) (V, error) {
	value, err := s.Get(ctx)
	if err != nil {
		return value, err
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return value, fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return value, nil
}

type collectionKeys[K comparable, V any] struct {
	client     *redis.Client
	collection string
	keyString  func(K) string
	parseKey   func(string) (K, error)
}

func (c *collectionKeys[K, V]) redisKey(key K) string {
	return redisKey(c.collection, c.keyString(key))
}

func (c *collectionKeys[K, V]) Keys(ctx context.Context) ([]K, error) {
	prefix := keyPrefix + ":" + c.collection + ":"

	var keys []K
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key, err := c.parseKey(strings.TrimPrefix(iter.Val(), prefix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return keys, nil
}

func (c *collectionKeys[K, V]) Exists(ctx context.Context, key K) (bool, error) {
	n, err := c.client.Exists(ctx, c.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", c.redisKey(key), err)
	}
	return n > 0, nil
}

func (c *collectionKeys[K, V]) Get(ctx context.Context, key K) (V, error) {
	return getJSON[V](ctx, c.client, c.redisKey(key))
}

func (c *collectionKeys[K, V]) Set(ctx context.Context, key K, value V) error {
	return setJSON(ctx, c.client, c.redisKey(key), value)
}

func (c *collectionKeys[K, V]) Delete(ctx context.Context, key K) (V, error) {
	value, err := c.Get(ctx, key)
	if err != nil {
		return value, err
	}
	if err := c.client.Del(ctx, c.redisKey(key)).Err(); err != nil {
		return value, fmt.Errorf("redis del %s: %w", c.redisKey(key), err)
	}
	return value, nil
}
