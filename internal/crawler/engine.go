// Package crawler runs the incremental per-account crawl: read the watermark,
// fetch newer raw records, parse and filter them, persist the batch and only
// then advance the watermark.
package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/fystack/tron-ledger-crawler/internal/metrics"
	"github.com/fystack/tron-ledger-crawler/internal/model"
	"github.com/fystack/tron-ledger-crawler/internal/parser"
	"github.com/fystack/tron-ledger-crawler/internal/storage"
	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
	"github.com/fystack/tron-ledger-crawler/pkg/events"
	"github.com/fystack/tron-ledger-crawler/pkg/store/checkpointstore"
	"github.com/samber/lo"
)

// FetchFunc returns raw records of account with block_timestamp >= minTs in
// ascending order. A bounded fetch may return only a prefix, cut between two
// timestamps; the rest is picked up by the next crawl.
type FetchFunc func(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error)

// Spec wires one crawl kind to its collaborators.
type Spec[T model.Record] struct {
	Kind        model.Kind
	Fetch       FetchFunc
	Parse       parser.Func[T]
	Sink        storage.Sink[T]
	Checkpoints checkpointstore.Store
	// Publisher is optional.
	Publisher events.Publisher
}

type Options struct {
	// AccountTimeout bounds the read-and-fetch stage and, separately, the
	// persist-and-advance stage of one account. Zero means no bound.
	AccountTimeout time.Duration
}

type Stage string

const (
	StageFetch   Stage = "fetch"
	StagePersist Stage = "persist"
	StagePanic   Stage = "panic"
)

// PersistError is a failed batch write. The watermark is left untouched.
type PersistError struct {
	Kind    model.Kind
	Account string
	Count   int
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %d %s records for %s: %v", e.Count, e.Kind, e.Account, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Result describes one account crawl. When Err is set before the batch was
// persisted, Stored is 0 and the stored watermark is unchanged.
type Result struct {
	Account      string
	Kind         model.Kind
	Watermark    int64
	NewWatermark int64
	Fetched      int
	Parsed       int
	Skipped      int
	Invalid      int
	Stale        int
	Stored       int
	Duration     time.Duration
	Stage        Stage
	Err          error
	// CheckpointErr is a failed watermark write after a successful persist.
	// The run still counts as a success.
	CheckpointErr error
}

func (r Result) OK() bool { return r.Err == nil }

type Engine[T model.Record] struct {
	spec Spec[T]
	opts Options
	log  *slog.Logger
}

func NewEngine[T model.Record](spec Spec[T], opts Options) *Engine[T] {
	return &Engine[T]{
		spec: spec,
		opts: opts,
		log:  logger.With("kind", string(spec.Kind)),
	}
}

func (e *Engine[T]) Kind() model.Kind { return e.spec.Kind }

// Crawl never returns an error: every failure, panics included, ends up in
// Result.Err.
func (e *Engine[T]) Crawl(ctx context.Context, account string) (res Result) {
	start := time.Now()
	res = Result{Account: account, Kind: e.spec.Kind}
	log := e.log.With("account", account)
	persisted := false

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			res.Stage = StagePanic
			log.Error("Crawl panicked", "panic", r, "persisted", persisted, "stack", string(debug.Stack()))
		}
		if res.Err != nil {
			if !persisted {
				res.Stored = 0
				res.NewWatermark = res.Watermark
			}
			metrics.AccountFailures.WithLabelValues(string(e.spec.Kind), string(res.Stage)).Inc()
		}
		res.Duration = time.Since(start)
		metrics.CrawlDuration.WithLabelValues(string(e.spec.Kind)).Observe(res.Duration.Seconds())
	}()

	fetchCtx, cancelFetch := e.stageContext(ctx)
	defer cancelFetch()

	watermark := e.readWatermark(fetchCtx, log, account)
	res.Watermark = watermark
	res.NewWatermark = watermark

	raw, err := e.spec.Fetch(fetchCtx, account, watermark+1)
	if err != nil {
		res.Stage = StageFetch
		res.Err = fmt.Errorf("fetch %s since %d: %w", e.spec.Kind, watermark+1, err)
		log.Error("Fetch failed", "min_timestamp", watermark+1, "err", err)
		return res
	}
	res.Fetched = len(raw)

	records := e.parseAndFilter(log, account, watermark, raw, &res)
	if len(records) == 0 {
		log.Debug("No new records", "watermark", watermark, "fetched", res.Fetched)
		return res
	}

	persistCtx, cancelPersist := e.stageContext(ctx)
	defer cancelPersist()

	if err := e.spec.Sink.InsertBatch(persistCtx, records); err != nil {
		res.Stage = StagePersist
		res.Err = &PersistError{Kind: e.spec.Kind, Account: account, Count: len(records), Err: err}
		log.Error("Persist failed, watermark unchanged", "watermark", watermark, "records", len(records), "err", err)
		return res
	}
	persisted = true
	res.Stored = len(records)
	metrics.RecordsStored.WithLabelValues(string(e.spec.Kind)).Add(float64(len(records)))

	newWatermark := model.MaxBlockTimestamp(records)
	if err := e.spec.Checkpoints.Set(persistCtx, e.spec.Kind, account, newWatermark); err != nil {
		res.CheckpointErr = err
		log.Warn("Checkpoint write failed, window will be re-read next run", "watermark", newWatermark, "err", err)
	} else {
		res.NewWatermark = newWatermark
		metrics.Watermark.WithLabelValues(string(e.spec.Kind), account).Set(float64(newWatermark))
	}

	if e.spec.Publisher != nil {
		e.spec.Publisher.PublishRecords(string(e.spec.Kind), account, newWatermark, records, len(records))
	}

	log.Info("Crawl stored records",
		"stored", res.Stored,
		"watermark", strconv.FormatInt(watermark, 10)+"->"+strconv.FormatInt(newWatermark, 10),
		"skipped", res.Skipped,
		"invalid", res.Invalid,
	)
	return res
}

// stageContext applies AccountTimeout to one stage of a crawl.
func (e *Engine[T]) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.AccountTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.AccountTimeout)
	}
	return context.WithCancel(ctx)
}

// readWatermark resolves the starting point: checkpoint, then the newest
// stored record, then 0. A failing checkpoint read goes straight to 0.
func (e *Engine[T]) readWatermark(ctx context.Context, log *slog.Logger, account string) int64 {
	ts, found, err := e.spec.Checkpoints.Get(ctx, e.spec.Kind, account)
	if err != nil {
		log.Warn("Checkpoint read failed, rescanning from 0", "err", err)
		return 0
	}
	if found {
		return ts
	}

	latest, err := e.spec.Sink.Latest(ctx, account)
	if err != nil {
		log.Warn("Latest stored record lookup failed, rescanning from 0", "err", err)
		return 0
	}
	if latest == nil {
		return 0
	}
	ts = (*latest).GetBlockTimestamp()
	log.Info("No checkpoint, resuming from latest stored record", "watermark", ts)
	return ts
}

func (e *Engine[T]) parseAndFilter(log *slog.Logger, account string, watermark int64, raw []json.RawMessage, res *Result) []T {
	parsed := make([]T, 0, len(raw))
	for _, r := range raw {
		rec, err := e.spec.Parse(account, r)
		switch {
		case err == nil:
			parsed = append(parsed, rec)
		case parser.IsSkip(err):
			res.Skipped++
		default:
			res.Invalid++
			var pe *parser.ParseError
			if errors.As(err, &pe) {
				log.Warn("Dropping unparseable record", "tx_id", pe.TxID, "err", err)
			} else {
				log.Warn("Dropping unparseable record", "err", err)
			}
		}
	}
	res.Parsed = len(parsed)

	fresh := lo.Filter(parsed, func(r T, _ int) bool {
		return r.GetBlockTimestamp() > watermark
	})
	res.Stale = len(parsed) - len(fresh)

	kind := string(e.spec.Kind)
	metrics.RecordsSkipped.WithLabelValues(kind).Add(float64(res.Skipped))
	metrics.ParseErrors.WithLabelValues(kind).Add(float64(res.Invalid))
	return fresh
}
