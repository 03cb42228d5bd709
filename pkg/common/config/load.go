package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/fystack/tron-ledger-crawler/pkg/common/constant"
	"github.com/fystack/tron-ledger-crawler/pkg/tron"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

var validate = validator.New()

// Load reads a YAML config, expands ${VAR} references, fills defaults and
// validates the result. A .env file next to the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is Load without touching the filesystem for the config itself.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if cfg.AccountsFile != "" {
		fromFile, err := loadAccountsFile(cfg.AccountsFile)
		if err != nil {
			return nil, err
		}
		cfg.Accounts = append(cfg.Accounts, fromFile...)
	}
	cfg.Accounts = lo.Uniq(lo.Map(cfg.Accounts, func(a string, _ int) string {
		return strings.TrimSpace(a)
	}))

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("struct validation failed: %w", err)
	}
	if err := cfg.validateBackends(); err != nil {
		return nil, err
	}
	for _, a := range cfg.Accounts {
		if err := tron.Validate(a); err != nil {
			return nil, fmt.Errorf("account %q: %w", a, err)
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Environment == "" {
		c.Environment = constant.EnvDevelopment
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	tg := &c.TronGrid
	if tg.URL == "" {
		tg.URL = constant.DefaultTronGridURL
	}
	if tg.APIKey == "" && tg.APIKeyEnv != "" {
		tg.APIKey = os.Getenv(tg.APIKeyEnv)
	}
	if tg.Timeout <= 0 {
		tg.Timeout = constant.DefaultRequestTimeout
	}
	if tg.PageLimit <= 0 {
		tg.PageLimit = constant.DefaultPageLimit
	}
	if tg.MaxPages <= 0 {
		tg.MaxPages = constant.DefaultMaxPages
	}

	if c.Crawl.Defaults.Interval <= 0 {
		c.Crawl.Defaults.Interval = constant.DefaultCrawlInterval
	}
	if c.Crawl.Defaults.AccountTimeout <= 0 {
		c.Crawl.Defaults.AccountTimeout = constant.DefaultAccountTimeout
	}
	for name, kc := range c.Crawl.Kinds {
		if err := mergo.Merge(&kc, c.Crawl.Defaults); err != nil {
			return fmt.Errorf("merge crawl defaults for %s: %w", name, err)
		}
		c.Crawl.Kinds[name] = kc
	}

	if c.NATS != nil && c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = constant.DefaultNATSSubjectPrefix
	}
	return nil
}

func (c *Config) validateBackends() error {
	switch c.Checkpoint.Type {
	case "redis":
		if c.Checkpoint.Redis.Addr == "" {
			return errors.New("checkpoint.redis.addr is required")
		}
	case "consul":
		if c.Checkpoint.Consul.Address == "" {
			return errors.New("checkpoint.consul.address is required")
		}
	}
	switch c.Storage.Type {
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return errors.New("storage.postgres.url is required")
		}
	case "bigquery":
		if c.Storage.BigQuery.ProjectID == "" || c.Storage.BigQuery.Dataset == "" {
			return errors.New("storage.bigquery.project_id and dataset are required")
		}
	}
	return nil
}

// Kind returns the effective settings for a crawl kind. Kinds without an
// explicit entry inherit the defaults.
func (c *Config) Kind(name string) KindConfig {
	if kc, ok := c.Crawl.Kinds[name]; ok {
		return kc
	}
	return c.Crawl.Defaults
}

func loadAccountsFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var accounts []string
	if err := json.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts file %s: %w", path, err)
	}
	return accounts, nil
}

func substituteEnvVars(s string) string {
	if s == "" {
		return s
	}
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		end += start
		varName := s[start+2 : end]
		s = strings.ReplaceAll(s, "${"+varName+"}", os.Getenv(varName))
	}
	return s
}
