package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/macromap/econsync/internal/cache"
	"github.com/macromap/econsync/internal/db"
	"github.com/macromap/econsync/internal/fetcher"
	"github.com/macromap/econsync/internal/ingest/source"
)

// RunOpts controls one engine invocation.
type RunOpts struct {
	Indicators []string // catalog IDs to sync; empty means the whole catalog
	Force      bool     // ignore cadence gating and sync regardless
	Parallel   int      // concurrent indicators; <=1 runs sequentially
}

// RunSummary aggregates per-indicator outcomes for one engine invocation.
type RunSummary struct {
	Synced  int // indicators that produced a ledger entry with a result
	Skipped int // indicators not yet due under their cadence
	Failed  int // indicators whose run aborted
}

// Engine drives incremental ingestion: per indicator it gates on cadence,
// fetches the latest observations, reconciles them through the versioned
// upsert, and records exactly one ledger entry, success or failure.
type Engine struct {
	pool     db.Pool
	fetch    fetcher.Fetcher
	sources  *source.Registry
	upserter *Upserter
	ledger   *Ledger
	cache    *cache.Cache

	errCapCount int
	errCapBytes int
}

// NewEngine creates an Engine. cache may be nil when no query surface is
// running.
func NewEngine(pool db.Pool, f fetcher.Fetcher, sources *source.Registry, c *cache.Cache, errCapCount, errCapBytes int) *Engine {
	if errCapCount <= 0 {
		errCapCount = 5
	}
	if errCapBytes <= 0 {
		errCapBytes = 500
	}
	return &Engine{
		pool:        pool,
		fetch:       f,
		sources:     sources,
		upserter:    NewUpserter(pool),
		ledger:      NewLedger(pool),
		cache:       c,
		errCapCount: errCapCount,
		errCapBytes: errCapBytes,
	}
}

// Ledger exposes the engine's run ledger for reporting surfaces.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Run syncs the selected indicators. Each indicator is independent: one
// failing does not stop the others. Parallelism only ever spans distinct
// indicators, so no two workers touch the same version history.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*RunSummary, error) {
	indicators, err := SelectIndicators(opts.Indicators)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{}
	var mu sync.Mutex

	work := func(ctx context.Context, ind Indicator) error {
		outcome := e.syncOne(ctx, ind, opts.Force)
		mu.Lock()
		switch outcome {
		case outcomeSynced:
			summary.Synced++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeFailed:
			summary.Failed++
		}
		mu.Unlock()
		return nil
	}

	if opts.Parallel > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallel)
		for _, ind := range indicators {
			ind := ind
			g.Go(func() error { return work(gctx, ind) })
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}
	} else {
		for _, ind := range indicators {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if err := work(ctx, ind); err != nil {
				return summary, err
			}
		}
	}

	zap.L().Info("ingestion run finished",
		zap.Int("synced", summary.Synced),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (e *Engine) syncOne(ctx context.Context, ind Indicator, force bool) outcome {
	log := zap.L().With(
		zap.String("component", "ingest.engine"),
		zap.String("indicator", ind.ID),
	)
	startedAt := time.Now().UTC()

	if !force {
		last, err := e.ledger.LastSuccess(ctx, ind.JobName())
		if err != nil {
			log.Error("cadence check failed", zap.Error(err))
			e.recordFailure(ctx, ind, startedAt, err)
			return outcomeFailed
		}
		if !ind.ShouldRun(startedAt, last) {
			log.Debug("not due, skipping")
			return outcomeSkipped
		}
	}

	src, err := e.sources.Get(ind.Source)
	if err != nil {
		log.Error("unknown source", zap.Error(err))
		e.recordFailure(ctx, ind, startedAt, err)
		return outcomeFailed
	}

	observations, err := src.Latest(ctx, e.fetch, ind.SourceCode)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		e.recordFailure(ctx, ind, startedAt, err)
		return outcomeFailed
	}

	res, err := e.upserter.Upsert(ctx, ind.ID, observations, startedAt)
	if err != nil {
		log.Error("upsert failed", zap.Error(err))
		e.recordFailure(ctx, ind, startedAt, err)
		return outcomeFailed
	}

	entry := RunEntry{
		JobName:      ind.JobName(),
		Status:       StatusFor(res),
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		Inserted:     res.Inserted,
		Updated:      res.Updated,
		Skipped:      res.Skipped,
		ErrorSummary: TruncateErrors(res.Errors, e.errCapCount, e.errCapBytes),
	}
	if err := e.ledger.Record(ctx, entry); err != nil {
		log.Error("ledger record failed", zap.Error(err))
		return outcomeFailed
	}

	if e.cache != nil {
		e.cache.InvalidatePrefix("values:" + ind.ID)
	}
	return outcomeSynced
}

// recordFailure writes the single ledger entry for an aborted run: zero
// counts and a truncated abort reason.
func (e *Engine) recordFailure(ctx context.Context, ind Indicator, startedAt time.Time, cause error) {
	entry := RunEntry{
		JobName:      ind.JobName(),
		Status:       StatusFailure,
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		ErrorSummary: TruncateErrors([]string{cause.Error()}, 1, e.errCapBytes),
	}
	// The ledger write must land even when the run itself was canceled.
	if err := e.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Error("ledger record failed for aborted run",
			zap.String("job", ind.JobName()),
			zap.Error(err),
		)
	}
}
