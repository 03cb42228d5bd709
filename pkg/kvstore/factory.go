package kvstore

import (
	"fmt"

	"github.com/fystack/tron-ledger-crawler/pkg/common/config"
	"github.com/fystack/tron-ledger-crawler/pkg/common/enum"
	"github.com/fystack/tron-ledger-crawler/pkg/infra"
	"github.com/hashicorp/consul/api"
)

// NewFromConfig constructs the checkpoint backend named by cfg.Type.
func NewFromConfig(cfg config.CheckpointConfig) (infra.KVStore, error) {
	switch cfg.Type {
	case enum.KVStoreTypeRedis:
		opts := infra.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		if t := cfg.Redis.TLS; t != nil {
			opts.TLS = &infra.RedisTLS{CACert: t.CACert, ClientCert: t.ClientCert, ClientKey: t.ClientKey}
		}
		client, err := infra.NewRedisClient(opts)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, ""), nil
	case enum.KVStoreTypeBadger:
		return NewBadgerStore(cfg.Badger.Directory, cfg.Badger.Prefix)
	case enum.KVStoreTypeConsul:
		opts := ConsulOptions{
			Scheme:  cfg.Consul.Scheme,
			Address: cfg.Consul.Address,
			Folder:  cfg.Consul.Folder,
			Token:   cfg.Consul.Token,
		}
		if cfg.Consul.HttpAuth.Username != "" {
			opts.HttpAuth = &api.HttpBasicAuth{
				Username: cfg.Consul.HttpAuth.Username,
				Password: cfg.Consul.HttpAuth.Password,
			}
		}
		return NewConsulClient(opts)
	default:
		return nil, fmt.Errorf("unsupported kvstore type: %s", cfg.Type)
	}
}
