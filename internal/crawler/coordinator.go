package crawler

import (
	"context"
	"time"

	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Runner is the per-kind entry point the scheduler invokes. It is safe to
// call while a previous run of the same kind is still in flight.
type Runner interface {
	Kind() model.Kind
	Run(ctx context.Context, accounts []string) Summary
}

type Summary struct {
	RunID     string
	Kind      model.Kind
	Accounts  int
	Succeeded int
	Failed    int
	Stored    int
	Duration  time.Duration
	Results   []Result
}

// Failures returns the results that ended with an error.
func (s Summary) Failures() []Result {
	return lo.Filter(s.Results, func(r Result, _ int) bool { return !r.OK() })
}

type accountCrawler interface {
	Kind() model.Kind
	Crawl(ctx context.Context, account string) Result
}

// Coordinator fans one kind out over every tracked account. A failing
// account never cancels its siblings and nothing is retried here.
type Coordinator struct {
	engine accountCrawler
	// MaxConcurrency caps parallel accounts; zero runs all at once.
	MaxConcurrency int
}

func NewCoordinator[T model.Record](engine *Engine[T]) *Coordinator {
	return &Coordinator{engine: engine}
}

func (c *Coordinator) Kind() model.Kind { return c.engine.Kind() }

func (c *Coordinator) Run(ctx context.Context, accounts []string) Summary {
	start := time.Now()
	runID := uuid.NewString()
	kind := c.engine.Kind()
	log := logger.With("kind", string(kind), "run_id", runID)

	results := make([]Result, len(accounts))
	var g errgroup.Group
	if c.MaxConcurrency > 0 {
		g.SetLimit(c.MaxConcurrency)
	}
	for i, account := range accounts {
		g.Go(func() error {
			results[i] = c.engine.Crawl(ctx, account)
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{
		RunID:    runID,
		Kind:     kind,
		Accounts: len(accounts),
		Duration: time.Since(start),
		Results:  results,
	}
	for _, r := range results {
		s.Stored += r.Stored
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}

	args := []any{
		"accounts", s.Accounts,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"stored", s.Stored,
		"duration", s.Duration,
	}
	if s.Failed > 0 {
		failed := lo.Map(s.Failures(), func(r Result, _ int) string { return r.Account })
		log.Warn("Crawl run finished with failures", append(args, "failed_accounts", failed)...)
	} else {
		log.Info("Crawl run finished", args...)
	}
	return s
}
