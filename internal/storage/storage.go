// Package storage defines the append-only analytical store the crawler writes
// to and picks a backend from config.
package storage

import (
	"context"
	"fmt"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/internal/storage/bigquery"
	"github.com/fystack/tron-ledger-crawler/internal/storage/memory"
	"github.com/fystack/tron-ledger-crawler/internal/storage/postgres"
	"github.com/fystack/tron-ledger-crawler/pkg/common/config"
	"github.com/fystack/tron-ledger-crawler/pkg/common/enum"
)

// Sink persists records of one kind. Inserts are append-only; duplicate rows
// are allowed.
type Sink[T model.Record] interface {
	InsertBatch(ctx context.Context, records []T) error
	// Latest returns the newest stored record of account, nil when none.
	Latest(ctx context.Context, account string) (*T, error)
}

// Stores bundles the sink of every kind over one backend connection.
type Stores struct {
	Outbound Sink[model.Transaction]
	Inbound  Sink[model.Transaction]
	TRC20    Sink[model.TokenTransfer]

	migrate func(context.Context) error
	health  func(context.Context) error
	close   func() error
}

// Migrate creates missing tables and views. The memory backend has nothing
// to create.
func (s *Stores) Migrate(ctx context.Context) error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(ctx)
}

// Health checks the backend connection. Backends without one report healthy.
func (s *Stores) Health(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	return s.health(ctx)
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func NewMemory() *Stores {
	return &Stores{
		Outbound: memory.New[model.Transaction](model.KindOutbound.AccountRole()),
		Inbound:  memory.New[model.Transaction](model.KindInbound.AccountRole()),
		TRC20:    memory.New[model.TokenTransfer](model.KindTRC20.AccountRole()),
	}
}

// Open connects to the backend named by cfg.Type. Postgres migrations run on
// open when AutoMigrate is set.
func Open(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	switch cfg.Type {
	case enum.StorageTypeMemory:
		return NewMemory(), nil

	case enum.StorageTypePostgres:
		db, err := postgres.NewDB(ctx, postgres.Config{
			URL:      cfg.Postgres.URL,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return nil, err
		}
		s := &Stores{
			Outbound: postgres.NewTransactionSink(db, model.KindOutbound),
			Inbound:  postgres.NewTransactionSink(db, model.KindInbound),
			TRC20:    postgres.NewTokenSink(db),
			migrate:  db.Migrate,
			health:   db.Health,
			close:    db.Close,
		}
		if cfg.Postgres.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return s, nil

	case enum.StorageTypeBigQuery:
		client, err := bigquery.NewClient(ctx, bigquery.Config{
			ProjectID:       cfg.BigQuery.ProjectID,
			Dataset:         cfg.BigQuery.Dataset,
			CredentialsFile: cfg.BigQuery.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return &Stores{
			Outbound: bigquery.NewTransactionSink(client, model.KindOutbound),
			Inbound:  bigquery.NewTransactionSink(client, model.KindInbound),
			TRC20:    bigquery.NewTokenSink(client),
			migrate:  client.Migrate,
			close:    client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
