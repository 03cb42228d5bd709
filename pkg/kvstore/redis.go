package kvstore

import (
	"context"
	"errors"
	"strings"

	"github.com/fystack/tron-ledger-crawler/pkg/common/enum"
	"github.com/fystack/tron-ledger-crawler/pkg/infra"
	"github.com/redis/go-redis/v9"
)

// RedisStore adapts infra.RedisClient to infra.KVStore. Keys are stored
// without expiry.
type RedisStore struct {
	client infra.RedisClient
	prefix string
}

func NewRedisStore(client infra.RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) GetName() string {
	return string(enum.KVStoreTypeRedis)
}

func (r *RedisStore) Set(ctx context.Context, k string, v string) error {
	key, err := joinKey(r.prefix, k)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, v, 0)
}

func (r *RedisStore) Get(ctx context.Context, k string) (string, error) {
	key, err := joinKey(r.prefix, k)
	if err != nil {
		return "", err
	}
	v, err := r.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return v, err
}

func (r *RedisStore) List(ctx context.Context, prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}
	search, _ := joinKey(r.prefix, prefix)

	keys, err := r.client.Scan(ctx, search+"*")
	if err != nil {
		return nil, err
	}
	result := make([]*infra.KVPair, 0, len(keys))
	for _, key := range keys {
		v, err := r.client.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if r.prefix != "" {
			key = strings.TrimPrefix(key, r.prefix+"/")
		}
		result = append(result, &infra.KVPair{Key: key, Value: []byte(v)})
	}
	return result, nil
}

func (r *RedisStore) Delete(ctx context.Context, k string) error {
	key, err := joinKey(r.prefix, k)
	if err != nil {
		return err
	}
	return r.client.Del(ctx, key)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
