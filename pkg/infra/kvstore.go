package infra

import "context"

type KVPair struct {
	Key   string
	Value []byte
}

// KVStore is the key-value surface behind the checkpoint store.
// Implementations: Redis, BadgerDB, Consul.
type KVStore interface {
	GetName() string
	Set(ctx context.Context, k string, v string) error
	// Get returns kvstore.ErrKeyNotFound when k is absent.
	Get(ctx context.Context, k string) (string, error)
	List(ctx context.Context, prefix string) ([]*KVPair, error)
	Delete(ctx context.Context, k string) error
	Close() error
}
