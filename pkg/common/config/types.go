package config

import (
	"time"

	"github.com/fystack/tron-ledger-crawler/pkg/common/enum"
)

type Config struct {
	Environment  string           `yaml:"environment"   validate:"required,oneof=production development"`
	LogLevel     string           `yaml:"log_level"     validate:"omitempty,oneof=debug info warn error"`
	TronGrid     TronGridConfig   `yaml:"trongrid"      validate:"required"`
	Accounts     []string         `yaml:"accounts"`
	AccountsFile string           `yaml:"accounts_file"`
	Crawl        CrawlConfig      `yaml:"crawl"`
	Checkpoint   CheckpointConfig `yaml:"checkpoint"    validate:"required"`
	Storage      StorageConfig    `yaml:"storage"       validate:"required"`
	NATS         *NATSConfig      `yaml:"nats,omitempty"`
	Metrics      MetricsConfig    `yaml:"metrics"`
}

type TronGridConfig struct {
	URL       string         `yaml:"url"         validate:"required,url"`
	APIKey    string         `yaml:"api_key"`
	APIKeyEnv string         `yaml:"api_key_env"`
	Timeout   time.Duration  `yaml:"timeout"`
	PageLimit int            `yaml:"page_limit"  validate:"min=0,max=200"`
	MaxPages  int            `yaml:"max_pages"   validate:"min=0"`
	Throttle  ThrottleConfig `yaml:"throttle"`
	Retry     RetryConfig    `yaml:"retry"`
}

type ThrottleConfig struct {
	RPS   int `yaml:"rps"   validate:"min=0"`
	Burst int `yaml:"burst" validate:"min=0"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"     validate:"min=0"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
}

// CrawlConfig holds scheduling knobs. Defaults apply to every kind and are
// merged into the per-kind entries; an empty Kinds map enables all kinds.
type CrawlConfig struct {
	Defaults KindConfig            `yaml:"defaults"`
	Kinds    map[string]KindConfig `yaml:"kinds"    validate:"omitempty,dive,keys,oneof=outbound inbound trc20,endkeys"`
}

type KindConfig struct {
	Disabled       bool          `yaml:"disabled"`
	Interval       time.Duration `yaml:"interval"`
	AccountTimeout time.Duration `yaml:"account_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency" validate:"min=0"`
}

type CheckpointConfig struct {
	Type   enum.KVStoreType `yaml:"type"   validate:"required,oneof=redis badger consul"`
	Redis  RedisConfig      `yaml:"redis"`
	Badger BadgerConfig     `yaml:"badger"`
	Consul ConsulConfig     `yaml:"consul"`
}

type RedisConfig struct {
	Addr     string     `yaml:"addr"`
	Password string     `yaml:"password"`
	DB       int        `yaml:"db"`
	TLS      *TLSConfig `yaml:"tls,omitempty"`
}

type TLSConfig struct {
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type ConsulConfig struct {
	Scheme   string         `yaml:"scheme"`
	Address  string         `yaml:"address"`
	Folder   string         `yaml:"folder"`
	Token    string         `yaml:"token"`
	HttpAuth HttpAuthConfig `yaml:"http_auth"`
}

type HttpAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StorageConfig struct {
	Type     enum.StorageType `yaml:"type"     validate:"required,oneof=postgres bigquery memory"`
	Postgres PostgresConfig   `yaml:"postgres"`
	BigQuery BigQueryConfig   `yaml:"bigquery"`
}

type PostgresConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int    `yaml:"max_conns"`
	MinConns    int    `yaml:"min_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type BigQueryConfig struct {
	ProjectID       string `yaml:"project_id"`
	Dataset         string `yaml:"dataset"`
	CredentialsFile string `yaml:"credentials_file"`
}

type NATSConfig struct {
	URL           string `yaml:"url"            validate:"required,url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}
