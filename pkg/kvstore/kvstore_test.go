package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fystack/tron-ledger-crawler/pkg/infra"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadger(t *testing.T, prefix string) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore("", prefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func exerciseStore(t *testing.T, s infra.KVStore) {
	ctx := context.Background()

	_, err := s.Get(ctx, "from_latest_ts:TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "from_latest_ts:TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", "1742740623000"))
	require.NoError(t, s.Set(ctx, "from_latest_ts:T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb", "5"))
	require.NoError(t, s.Set(ctx, "to_latest_ts:T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb", "7"))

	v, err := s.Get(ctx, "from_latest_ts:TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	require.NoError(t, err)
	assert.Equal(t, "1742740623000", v)

	pairs, err := s.List(ctx, "from_latest_ts:")
	require.NoError(t, err)
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, p.Key)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"from_latest_ts:T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb",
		"from_latest_ts:TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
	}, keys)

	require.NoError(t, s.Delete(ctx, "to_latest_ts:T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"))
	_, err = s.Get(ctx, "to_latest_ts:T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.ErrorIs(t, s.Set(ctx, "", "x"), ErrKeyEmpty)
	_, err = s.List(ctx, "")
	assert.ErrorIs(t, err, ErrPrefixEmpty)
}

func TestBadgerStore(t *testing.T) {
	exerciseStore(t, newBadger(t, ""))
}

func TestBadgerStoreWithPrefix(t *testing.T) {
	s := newBadger(t, "crawler")
	exerciseStore(t, s)
	assert.Equal(t, "badger", s.GetName())
}

func TestBadgerStoreHonoursCancelledContext(t *testing.T) {
	s := newBadger(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) GetClient() *redis.Client { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Scan(_ context.Context, match string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var out []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisStore(t *testing.T) {
	exerciseStore(t, NewRedisStore(newFakeRedis(), ""))
}

func TestRedisStoreWithPrefix(t *testing.T) {
	fake := newFakeRedis()
	s := NewRedisStore(fake, "tron")
	exerciseStore(t, s)
	_, ok := fake.data["tron/from_latest_ts:T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"]
	assert.True(t, ok)
}
