package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/internal/scheduler"
	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
	"github.com/samber/lo"
)

var version = "dev"

type CLI struct {
	Config      string         `help:"Path to config file." default:"configs/config.yaml" name:"config" type:"path"`
	Run         RunCmd         `cmd:"" default:"1" help:"Crawl every enabled kind on its interval until interrupted."`
	Once        OnceCmd        `cmd:"" help:"Crawl one kind for every account once and exit."`
	Migrate     MigrateCmd     `cmd:"" help:"Create the ledger tables and dedup views."`
	Checkpoints CheckpointsCmd `cmd:"" help:"Inspect or reset stored watermarks."`
}

type RunCmd struct{}

type OnceCmd struct {
	Kind    string   `help:"Crawl kind: outbound, inbound or trc20." required:"" enum:"outbound,inbound,trc20"`
	Account []string `help:"Restrict the crawl to these accounts." name:"account"`
}

type MigrateCmd struct{}

type CheckpointsCmd struct {
	List  CheckpointsListCmd  `cmd:"" help:"Print the watermarks of a kind."`
	Reset CheckpointsResetCmd `cmd:"" help:"Delete one account's watermark so the next run resumes from storage."`
}

type CheckpointsListCmd struct {
	Kind string `help:"Crawl kind." required:"" enum:"outbound,inbound,trc20"`
}

type CheckpointsResetCmd struct {
	Kind    string `help:"Crawl kind." required:"" enum:"outbound,inbound,trc20"`
	Account string `help:"Account address." required:""`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("crawler"),
		kong.Description("Incremental TRON ledger crawler."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	board := newStatusBoard()
	s := scheduler.New(ctx, cfg.Accounts)
	s.OnSummary = board.Record
	for _, kind := range a.enabledKinds() {
		r, err := a.runner(kind)
		if err != nil {
			a.close()
			return err
		}
		s.AddJobs(scheduler.Job{Runner: r, Interval: cfg.Kind(string(kind)).Interval})
	}
	for _, r := range a.resources() {
		s.AddCloser(r.name, r.close)
	}

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		server = startHTTPServer(cfg.Metrics.Addr, version, board, a.stores.Health)
	}

	s.Start()
	logger.Info("Crawler is running... Press Ctrl+C to stop")
	<-ctx.Done()

	stopHTTPServer(server)
	s.Stop()
	logger.Info("Crawler stopped")
	return nil
}

func (c *OnceCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	kind, err := model.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	accounts := cfg.Accounts
	if len(c.Account) > 0 {
		accounts = lo.Filter(accounts, func(a string, _ int) bool { return slices.Contains(c.Account, a) })
		if missing, _ := lo.Difference(c.Account, accounts); len(missing) > 0 {
			return fmt.Errorf("accounts not tracked in config: %v", missing)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.runner(kind)
	if err != nil {
		return err
	}
	s := r.Run(ctx, accounts)
	for _, f := range s.Failures() {
		logger.Error("Account failed", "account", f.Account, "stage", string(f.Stage), "err", f.Err)
	}
	if s.Failed > 0 {
		return fmt.Errorf("%d of %d accounts failed", s.Failed, s.Accounts)
	}
	return nil
}

func (c *MigrateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.stores.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.Storage.Type, err)
	}
	logger.Info("Migration complete", "storage", cfg.Storage.Type)
	return nil
}

func (c *CheckpointsListCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	kind, err := model.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	marks, err := a.checkpoints.List(context.Background(), kind)
	if err != nil {
		return err
	}
	accounts := lo.Keys(marks)
	slices.Sort(accounts)
	for _, acc := range accounts {
		fmt.Printf("%s\t%d\n", acc, marks[acc])
	}
	return nil
}

func (c *CheckpointsResetCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	kind, err := model.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.checkpoints.Delete(context.Background(), kind, c.Account); err != nil {
		return err
	}
	logger.Info("Checkpoint deleted", "key", model.CheckpointKey(kind, c.Account))
	return nil
}
