package kvstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/fystack/tron-ledger-crawler/pkg/common/enum"
	"github.com/fystack/tron-ledger-crawler/pkg/infra"
)

type BadgerStore struct {
	db     *badger.DB
	prefix string
}

// NewBadgerStore opens a store at path. An empty path keeps everything in
// memory, which is what tests and one-shot runs use.
func NewBadgerStore(path string, prefix string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, prefix: prefix}, nil
}

func (b *BadgerStore) GetName() string {
	return string(enum.KVStoreTypeBadger)
}

func (b *BadgerStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	k, err := joinKey(b.prefix, key)
	if err != nil {
		return "", err
	}

	var val []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(k))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return string(val), err
}

func (b *BadgerStore) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := joinKey(b.prefix, key)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(k), []byte(value))
	})
}

// List returns pairs under prefix with the store prefix stripped from keys.
func (b *BadgerStore) List(ctx context.Context, prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	search, _ := joinKey(b.prefix, prefix)

	result := make([]*infra.KVPair, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(search)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			key := string(item.KeyCopy(nil))
			if b.prefix != "" {
				key = strings.TrimPrefix(key, b.prefix+"/")
			}
			result = append(result, &infra.KVPair{Key: key, Value: v})
		}
		return nil
	})
	return result, err
}

func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := joinKey(b.prefix, key)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(k))
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
