package checkpointstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/pkg/infra"
	"github.com/fystack/tron-ledger-crawler/pkg/kvstore"
)

// Store keeps the per (kind, account) watermark: the highest block timestamp
// already persisted.
type Store interface {
	// Get returns found=false when no watermark was ever written.
	Get(ctx context.Context, kind model.Kind, account string) (ts int64, found bool, err error)
	Set(ctx context.Context, kind model.Kind, account string, ts int64) error
	// List returns every watermark of kind keyed by account.
	List(ctx context.Context, kind model.Kind) (map[string]int64, error)
	Delete(ctx context.Context, kind model.Kind, account string) error
	Close() error
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func (s *kvStore) Get(ctx context.Context, kind model.Kind, account string) (int64, bool, error) {
	key := model.CheckpointKey(kind, account)
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get checkpoint %s: %w", key, err)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode checkpoint %s=%q: %w", key, v, err)
	}
	return ts, true, nil
}

func (s *kvStore) Set(ctx context.Context, kind model.Kind, account string, ts int64) error {
	key := model.CheckpointKey(kind, account)
	if err := s.kv.Set(ctx, key, strconv.FormatInt(ts, 10)); err != nil {
		return fmt.Errorf("set checkpoint %s: %w", key, err)
	}
	return nil
}

func (s *kvStore) List(ctx context.Context, kind model.Kind) (map[string]int64, error) {
	prefix := kind.CheckpointNamespace() + ":"
	pairs, err := s.kv.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints %s: %w", kind, err)
	}

	out := make(map[string]int64, len(pairs))
	for _, pair := range pairs {
		ts, err := strconv.ParseInt(strings.TrimSpace(string(pair.Value)), 10, 64)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(pair.Key, prefix)] = ts
	}
	return out, nil
}

func (s *kvStore) Delete(ctx context.Context, kind model.Kind, account string) error {
	key := model.CheckpointKey(kind, account)
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", key, err)
	}
	return nil
}

func (s *kvStore) Close() error {
	return s.kv.Close()
}
