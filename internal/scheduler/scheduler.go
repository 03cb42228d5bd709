// Package scheduler fires each crawl kind on its own fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fystack/tron-ledger-crawler/internal/crawler"
	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Job is one kind's runner and the period between run starts.
type Job struct {
	Runner   crawler.Runner
	Interval time.Duration
}

type closer struct {
	name string
	fn   func() error
}

// Scheduler runs every job immediately and then once per interval. A tick
// never waits for the previous run of the same kind, so runs may overlap.
type Scheduler struct {
	accounts []string
	jobs     []Job
	closers  []closer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnSummary, when set, sees every finished run.
	OnSummary       func(crawler.Summary)
	// ShutdownTimeout bounds how long Stop waits for in-flight runs.
	ShutdownTimeout time.Duration
}

func New(ctx context.Context, accounts []string) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		accounts:        accounts,
		ctx:             ctx,
		cancel:          cancel,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// AddJobs registers jobs. Jobs with a non-positive interval are ignored.
func (s *Scheduler) AddJobs(jobs ...Job) {
	for _, j := range jobs {
		if j.Interval <= 0 {
			logger.Warn("Ignoring job without interval", "kind", string(j.Runner.Kind()))
			continue
		}
		s.jobs = append(s.jobs, j)
	}
}

// AddCloser registers a resource released by Stop, in registration order.
func (s *Scheduler) AddCloser(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

func (s *Scheduler) Start() {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(j)
	}
	logger.Info("Scheduler started", "jobs", len(s.jobs), "accounts", len(s.accounts))
}

func (s *Scheduler) loop(j Job) {
	defer s.wg.Done()
	kind := string(j.Runner.Kind())

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	s.fire(j)
	for {
		select {
		case <-s.ctx.Done():
			logger.Info("Schedule stopped", "kind", kind)
			return
		case <-ticker.C:
			s.fire(j)
		}
	}
}

func (s *Scheduler) fire(j Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary := j.Runner.Run(s.ctx, s.accounts)
		if s.OnSummary != nil {
			s.OnSummary(summary)
		}
	}()
}

// Stop cancels the schedule, waits for in-flight runs up to ShutdownTimeout
// and then closes the registered resources.
func (s *Scheduler) Stop() {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All crawl runs finished")
	case <-time.After(s.ShutdownTimeout):
		logger.Warn("Crawl runs did not finish in time, closing resources anyway",
			"timeout", s.ShutdownTimeout)
	}

	for _, c := range s.closers {
		if err := c.fn(); err != nil {
			logger.Error("Failed to close "+c.name, "err", err)
		}
	}
	logger.Info("Scheduler stopped")
}
