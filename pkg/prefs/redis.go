package prefs

import (
	"fmt"

	"github.com/go-redis/redis"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a redis client as a Store. Keys are namespaced
// with the given prefix.
func NewRedisStore(client *redis.Client, prefix string) Store {
	return &redisStore{client: client, prefix: prefix}
}

func (r *redisStore) key(k string) string {
	return r.prefix + ":" + k
}

func (r *redisStore) Get(key string) (string, bool, error) {
	val, err := r.client.Get(r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("prefs get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *redisStore) Set(key, value string) error {
	if err := r.client.Set(r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("prefs set %s: %w", key, err)
	}
	return nil
}

func (r *redisStore) Remove(key string) error {
	if err := r.client.Del(r.key(key)).Err(); err != nil {
		return fmt.Errorf("prefs remove %s: %w", key, err)
	}
	return nil
}
