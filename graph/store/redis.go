package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "flowstudio:"

// RedisStore is a Redis implementation of Store.
//
// Each version is a JSON string under flowstudio:version:{app}:{id}; a
// sorted set flowstudio:versions:{app} scored by creation time (unix ms)
// indexes the app's versions for newest-first listing.
type RedisStore struct {
	client *redis.Client
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// NewRedisStore connects to the Redis server at url (redis://...) and
// verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes
// ownership and closes the client on Close.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (r *RedisStore) versionKey(appID, id string) string {
	return redisPrefix + "version:" + appID + ":" + id
}

func (r *RedisStore) indexKey(appID string) string {
	return redisPrefix + "versions:" + appID
}

func (r *RedisStore) check() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

// SaveVersion implements Store.
func (r *RedisStore) SaveVersion(ctx context.Context, v Version) (Version, error) {
	if err := r.check(); err != nil {
		return Version{}, err
	}
	v, err := prepare(v, r.now)
	if err != nil {
		return Version{}, err
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return Version{}, fmt.Errorf("failed to marshal version: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.versionKey(v.AppID, v.ID), data, 0)
		p.ZAdd(ctx, r.indexKey(v.AppID), redis.Z{
			Score:  float64(v.CreatedAt.UnixMilli()),
			Member: v.ID,
		})
		return nil
	})
	if err != nil {
		return Version{}, fmt.Errorf("failed to save version: %w", err)
	}
	return v, nil
}

// LoadVersion implements Store.
func (r *RedisStore) LoadVersion(ctx context.Context, appID, id string) (Version, error) {
	if err := r.check(); err != nil {
		return Version{}, err
	}
	data, err := r.client.Get(ctx, r.versionKey(appID, id)).Result()
	if errors.Is(err, redis.Nil) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, fmt.Errorf("failed to load version: %w", err)
	}
	return decodeVersion(data)
}

// LatestVersion implements Store.
func (r *RedisStore) LatestVersion(ctx context.Context, appID string) (Version, error) {
	list, err := r.ListVersions(ctx, appID, 1)
	if err != nil {
		return Version{}, err
	}
	if len(list) == 0 {
		return Version{}, ErrNotFound
	}
	return list[0], nil
}

// ListVersions implements Store. Index entries whose version key has
// vanished are skipped.
func (r *RedisStore) ListVersions(ctx context.Context, appID string, limit int) ([]Version, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, r.indexKey(appID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.versionKey(appID, id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}

	out := make([]Version, 0, len(vals))
	for _, val := range vals {
		s, ok := val.(string)
		if !ok {
			continue
		}
		v, err := decodeVersion(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteVersion implements Store.
func (r *RedisStore) DeleteVersion(ctx context.Context, appID, id string) error {
	if err := r.check(); err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, r.versionKey(appID, id))
		p.ZRem(ctx, r.indexKey(appID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the Redis client. Double-close is a no-op.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// Ping tests the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.client.Ping(ctx).Err()
}

func decodeVersion(data string) (Version, error) {
	var v Version
	if err := sonic.ConfigStd.UnmarshalFromString(data, &v); err != nil {
		return Version{}, fmt.Errorf("failed to unmarshal version: %w", err)
	}
	return v, nil
}
