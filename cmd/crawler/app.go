package main

import (
	"context"
	"fmt"

	"github.com/fystack/tron-ledger-crawler/internal/crawler"
	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/internal/rpc/trongrid"
	"github.com/fystack/tron-ledger-crawler/internal/storage"
	"github.com/fystack/tron-ledger-crawler/pkg/common/config"
	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
	"github.com/fystack/tron-ledger-crawler/pkg/events"
	"github.com/fystack/tron-ledger-crawler/pkg/infra"
	"github.com/fystack/tron-ledger-crawler/pkg/kvstore"
	"github.com/fystack/tron-ledger-crawler/pkg/store/checkpointstore"
)

// app holds the process-wide collaborators shared by every crawl kind.
type app struct {
	cfg         *config.Config
	checkpoints checkpointstore.Store
	stores      *storage.Stores
	api         *trongrid.Client
	publisher   events.Publisher
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(&logger.Options{Level: logger.ParseLevel(cfg.LogLevel)})
	logger.Info("Config loaded",
		"environment", cfg.Environment,
		"accounts", len(cfg.Accounts),
		"checkpoint", cfg.Checkpoint.Type,
		"storage", cfg.Storage.Type,
	)
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	kv, err := kvstore.NewFromConfig(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}
	a := &app{cfg: cfg, checkpoints: checkpointstore.New(kv)}

	a.stores, err = storage.Open(ctx, cfg.Storage)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	a.api, err = trongrid.NewFromConfig(cfg.TronGrid)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("trongrid client: %w", err)
	}

	if cfg.NATS != nil {
		nc, err := infra.GetNATSConnection(*cfg.NATS)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.publisher = events.NewEmitter(nc, cfg.NATS.SubjectPrefix)
	}
	return a, nil
}

func (a *app) deps() crawler.Deps {
	return crawler.Deps{
		API:         a.api,
		Stores:      a.stores,
		Checkpoints: a.checkpoints,
		Publisher:   a.publisher,
	}
}

func (a *app) runner(kind model.Kind) (crawler.Runner, error) {
	kc := a.cfg.Kind(string(kind))
	r, err := crawler.NewRunner(kind, a.deps(), crawler.Options{AccountTimeout: kc.AccountTimeout})
	if err != nil {
		return nil, err
	}
	if c, ok := r.(*crawler.Coordinator); ok {
		c.MaxConcurrency = kc.MaxConcurrency
	}
	return r, nil
}

// enabledKinds lists the kinds not disabled in config, in canonical order.
func (a *app) enabledKinds() []model.Kind {
	var kinds []model.Kind
	for _, k := range model.AllKinds {
		if a.cfg.Kind(string(k)).Disabled {
			logger.Info("Crawl kind disabled", "kind", string(k))
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

type resource struct {
	name  string
	close func() error
}

// resources returns the shutdown release order: publisher first so no event
// goes out after its stores close.
func (a *app) resources() []resource {
	var out []resource
	if a.publisher != nil {
		out = append(out, resource{"publisher", func() error { a.publisher.Close(); return nil }})
	}
	if a.stores != nil {
		out = append(out, resource{"storage", a.stores.Close})
	}
	if a.checkpoints != nil {
		out = append(out, resource{"checkpoint store", a.checkpoints.Close})
	}
	return out
}

func (a *app) close() {
	for _, r := range a.resources() {
		if err := r.close(); err != nil {
			logger.Error("Failed to close "+r.name, "err", err)
		}
	}
}
