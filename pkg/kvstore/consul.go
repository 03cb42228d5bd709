package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fystack/tron-ledger-crawler/pkg/common/enum"
	"github.com/fystack/tron-ledger-crawler/pkg/infra"
	"github.com/hashicorp/consul/api"
)

// ConsulClient implements infra.KVStore on top of the Consul KV API.
type ConsulClient struct {
	c      *api.KV
	folder string
}

func (c ConsulClient) GetName() string {
	return string(enum.KVStoreTypeConsul)
}

func (c ConsulClient) Set(ctx context.Context, k string, v string) error {
	key, err := joinKey(c.folder, k)
	if err != nil {
		return err
	}
	wo := (&api.WriteOptions{}).WithContext(ctx)
	_, err = c.c.Put(&api.KVPair{Key: key, Value: []byte(v)}, wo)
	return err
}

func (c ConsulClient) Get(ctx context.Context, k string) (string, error) {
	key, err := joinKey(c.folder, k)
	if err != nil {
		return "", err
	}
	qo := (&api.QueryOptions{}).WithContext(ctx)
	kvPair, _, err := c.c.Get(key, qo)
	if err != nil {
		return "", err
	}
	if kvPair == nil {
		return "", ErrKeyNotFound
	}
	return string(kvPair.Value), nil
}

func (c ConsulClient) List(ctx context.Context, prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}
	search, _ := joinKey(c.folder, prefix)

	qo := (&api.QueryOptions{}).WithContext(ctx)
	kvPairs, _, err := c.c.List(search, qo)
	if err != nil {
		return nil, err
	}

	result := make([]*infra.KVPair, len(kvPairs))
	for i, kvPair := range kvPairs {
		key := kvPair.Key
		if c.folder != "" {
			key = strings.TrimPrefix(key, c.folder+"/")
		}
		result[i] = &infra.KVPair{Key: key, Value: kvPair.Value}
	}
	return result, nil
}

// Delete of a missing key is not an error.
func (c ConsulClient) Delete(ctx context.Context, k string) error {
	key, err := joinKey(c.folder, k)
	if err != nil {
		return err
	}
	wo := (&api.WriteOptions{}).WithContext(ctx)
	_, err = c.c.Delete(key, wo)
	return err
}

func (c ConsulClient) Close() error {
	return nil
}

type ConsulOptions struct {
	// Optional ("http" by default).
	Scheme string
	// Optional ("127.0.0.1:8500" by default).
	Address string
	// Folder under which checkpoint keys live.
	Folder   string
	Token    string
	HttpAuth *api.HttpBasicAuth
}

var DefaultConsulOptions = ConsulOptions{
	Scheme:  "http",
	Address: "127.0.0.1:8500",
}

// NewConsulClient creates a client and checks that the cluster has a leader.
func NewConsulClient(options ConsulOptions) (infra.KVStore, error) {
	if options.Scheme == "" {
		options.Scheme = DefaultConsulOptions.Scheme
	}
	if options.Address == "" {
		options.Address = DefaultConsulOptions.Address
	}

	config := api.DefaultConfig()
	config.Scheme = options.Scheme
	config.Address = options.Address
	config.WaitTime = 10 * time.Second
	if options.Token != "" {
		config.Token = options.Token
	}
	if options.HttpAuth != nil {
		config.HttpAuth = options.HttpAuth
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}

	if _, err := client.Status().Leader(); err != nil {
		return nil, fmt.Errorf("failed to connect to Consul: %w", err)
	}

	return ConsulClient{c: client.KV(), folder: options.Folder}, nil
}
