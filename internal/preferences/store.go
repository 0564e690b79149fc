// Package preferences persists the small set of user settings and the
// viewing history in a key-value store.
package preferences

import (
	"context"
	"encoding/json"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/cache"
	"example.com/eventwave/internal/repositories"

	"github.com/pkg/errors"
)

// ErrKeyNotFound is returned by Store.Get when the key has no value
var ErrKeyNotFound = errors.New("preference not set")

// Store holds JSON-encodable values by key
type Store interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// NewStore picks the backend named by cfg.Backend
func NewStore(cfg config.PreferencesConfig, redisCache *cache.RedisCache, settings repositories.SettingRepository) (Store, error) {
	switch cfg.Backend {
	case "redis":
		if redisCache == nil || !redisCache.Enabled() {
			return nil, errors.New("preferences backend redis requires redis.enabled")
		}
		return NewRedisStore(redisCache), nil
	case "", "database":
		return NewDatabaseStore(settings), nil
	default:
		return nil, errors.Errorf("unknown preferences backend %q", cfg.Backend)
	}
}

// redisStore keeps preferences in Redis without expiry
type redisStore struct {
	cache *cache.RedisCache
}

// NewRedisStore stores preferences in Redis
func NewRedisStore(c *cache.RedisCache) Store {
	return &redisStore{cache: c}
}

func (s *redisStore) Get(ctx context.Context, key string, value interface{}) error {
	err := s.cache.Get(ctx, cache.PreferenceKey(key), value)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return ErrKeyNotFound
	}
	return err
}

func (s *redisStore) Set(ctx context.Context, key string, value interface{}) error {
	return s.cache.Set(ctx, cache.PreferenceKey(key), value, 0)
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = cache.PreferenceKey(k)
	}
	return s.cache.Delete(ctx, prefixed...)
}

// databaseStore keeps preferences as JSON text in the preferences table
type databaseStore struct {
	settings repositories.SettingRepository
}

// NewDatabaseStore stores preferences in the application database
func NewDatabaseStore(settings repositories.SettingRepository) Store {
	return &databaseStore{settings: settings}
}

func (s *databaseStore) Get(ctx context.Context, key string, value interface{}) error {
	raw, err := s.settings.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	return errors.Wrapf(json.Unmarshal([]byte(raw), value), "failed to decode preference %s", key)
}

func (s *databaseStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode preference %s", key)
	}
	return s.settings.Set(ctx, key, string(data))
}

func (s *databaseStore) Delete(ctx context.Context, keys ...string) error {
	return s.settings.Delete(ctx, keys...)
}
