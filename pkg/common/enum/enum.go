package enum

type KVStoreType string
type StorageType string

const (
	KVStoreTypeRedis  KVStoreType = "redis"
	KVStoreTypeBadger KVStoreType = "badger"
	KVStoreTypeConsul KVStoreType = "consul"
)

const (
	StorageTypePostgres StorageType = "postgres"
	StorageTypeBigQuery StorageType = "bigquery"
	StorageTypeMemory   StorageType = "memory"
)
