package infra

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// RedisClient abstracts the few Redis commands the watermark cache uses.
type RedisClient interface {
	GetClient() *redis.Client
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, match string) ([]string, error)
	Close() error
}

type RedisWrapper struct {
	client *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TLS      *RedisTLS
}

type RedisTLS struct {
	CACert     string
	ClientCert string
	ClientKey  string
}

func getTLSConfig(caCertPath, clientCertPath, clientKeyPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(expandTilde(caCertPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA cert to pool")
	}

	cert, err := tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
	}, nil
}

// NewRedisClient connects and pings Redis before returning.
func NewRedisClient(o RedisOptions) (RedisClient, error) {
	cpus := runtime.GOMAXPROCS(0)

	opts := &redis.Options{
		Addr:            o.Addr,
		Password:        o.Password,
		DB:              o.DB,
		PoolSize:        cpus * 10,
		MinIdleConns:    cpus * 2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	}

	if o.TLS != nil {
		tlsCfg, err := getTLSConfig(o.TLS.CACert, o.TLS.ClientCert, o.TLS.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config for redis client: %w", err)
		}
		opts.TLSConfig = tlsCfg
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Connected to Redis", "addr", o.Addr, "pong", pong)

	return &RedisWrapper{client: client}, nil
}

func (rw *RedisWrapper) GetClient() *redis.Client {
	return rw.client
}

func (rw *RedisWrapper) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return rw.client.Set(ctx, key, value, expiration).Err()
}

// Get returns redis.Nil when the key does not exist.
func (rw *RedisWrapper) Get(ctx context.Context, key string) (string, error) {
	return rw.client.Get(ctx, key).Result()
}

func (rw *RedisWrapper) Del(ctx context.Context, keys ...string) error {
	return rw.client.Del(ctx, keys...).Err()
}

func (rw *RedisWrapper) Scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := rw.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

func expandTilde(s string) string {
	if !strings.HasPrefix(s, "~") {
		return s
	}
	home, _ := os.UserHomeDir()
	return strings.Replace(s, "~", home, 1)
}
