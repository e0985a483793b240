// Package harness drives retrieval evaluation: it runs every registered
// strategy against every labeled query at every requested depth, scores
// each cell, and aggregates the means per (strategy, k).
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/logging"
	"github.com/stellarlinkco/rag-eval/internal/metrics"
	"github.com/stellarlinkco/rag-eval/internal/strategy"
)

// Config bounds one evaluation run. Ks are the retrieval depths; duplicates
// collapse and the report is ordered by ascending k. A zero Timeout disables
// the per-call deadline, a zero QPS disables rate limiting.
type Config struct {
	Ks          []int
	Concurrency int
	Timeout     time.Duration
	QPS         float64
	EmptyPolicy metrics.EmptyPolicy
}

// Harness fans evaluation cells out over a bounded worker pool.
type Harness struct {
	registry *strategy.Registry
	cfg      Config

	sem     chan struct{}
	limiter *rate.Limiter
}

// New validates the configuration and builds a Harness. Configuration
// problems are returned here, before any retrieval runs.
func New(registry *strategy.Registry, cfg Config) (*Harness, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, errors.New("harness: no strategies registered")
	}
	if len(cfg.Ks) == 0 {
		return nil, errors.New("harness: no k values")
	}
	for _, k := range cfg.Ks {
		if k <= 0 {
			return nil, fmt.Errorf("harness: k must be positive, got %d", k)
		}
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("harness: concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("harness: negative timeout %v", cfg.Timeout)
	}
	if cfg.QPS < 0 {
		return nil, fmt.Errorf("harness: negative qps %v", cfg.QPS)
	}
	switch cfg.EmptyPolicy {
	case "", metrics.EmptyZero, metrics.EmptyVacuous:
	default:
		return nil, fmt.Errorf("harness: unknown empty policy %q", cfg.EmptyPolicy)
	}
	if cfg.EmptyPolicy == "" {
		cfg.EmptyPolicy = metrics.EmptyZero
	}
	cfg.Ks = sortedUniqueKs(cfg.Ks)

	h := &Harness{
		registry: registry,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.Concurrency),
	}
	if cfg.QPS > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}
	return h, nil
}

// Run evaluates the dataset and returns the full report. A failing cell
// scores zero across the board and is recorded with its error; the run
// keeps going. Records land in an index-addressed slice, so their order
// does not depend on goroutine completion order.
func (h *Harness) Run(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	if h == nil {
		return nil, errors.New("harness: nil harness")
	}
	if ctx == nil {
		return nil, errors.New("harness: nil context")
	}
	if ds == nil {
		return nil, errors.New("harness: nil dataset")
	}
	if len(ds.Queries) == 0 {
		return nil, errors.New("harness: dataset has no queries")
	}

	strats := h.registry.All()
	ks := h.cfg.Ks
	logger := logging.FromContext(ctx)

	report := &Report{
		Dataset:   ds.Name,
		StartedAt: time.Now().UTC(),
		Records:   make([]MetricRecord, len(ks)*len(ds.Queries)*len(strats)),
	}

	var wg sync.WaitGroup
	for ki, k := range ks {
		for qi := range ds.Queries {
			for si := range strats {
				idx := (ki*len(ds.Queries)+qi)*len(strats) + si
				q := ds.Queries[qi]
				strat := strats[si]
				depth := k

				wg.Add(1)
				go func() {
					defer wg.Done()
					report.Records[idx] = h.runCell(ctx, logger, strat, q, depth)
				}()
			}
		}
	}
	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	report.Rows = aggregate(report.Records, ks, strategyNames(strats))
	return report, nil
}

func (h *Harness) runCell(ctx context.Context, logger *slog.Logger, strat strategy.Strategy, q dataset.Query, k int) MetricRecord {
	rec := MetricRecord{
		Strategy: strat.Name(),
		QueryID:  q.ID,
		K:        k,
		Expected: q.Expected,
	}

	fail := func(err error) MetricRecord {
		rec.Err = err.Error()
		logger.Warn("retrieval failed",
			"strategy", rec.Strategy,
			"query", q.ID,
			"k", k,
			"error", err)
		return rec
	}

	select {
	case <-ctx.Done():
		return fail(ctx.Err())
	default:
	}

	if err := h.acquire(ctx); err != nil {
		return fail(err)
	}
	defer h.release()

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	callCtx := ctx
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	ids, err := strat.Retrieve(callCtx, q.Text, k)
	rec.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		return fail(err)
	}

	rec.Result = metrics.Normalize(ids)
	rec.Precision = metrics.PrecisionWithPolicy(rec.Result, q.Expected, h.cfg.EmptyPolicy)
	rec.Recall = metrics.Recall(rec.Result, q.Expected)
	rec.MRR = metrics.ReciprocalRank(rec.Result, q.Expected)
	return rec
}

func (h *Harness) acquire(ctx context.Context) error {
	if h.sem == nil {
		return errors.New("harness: nil semaphore")
	}
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Harness) release() {
	<-h.sem
}

func strategyNames(strats []strategy.Strategy) []string {
	out := make([]string, 0, len(strats))
	for _, s := range strats {
		out = append(out, s.Name())
	}
	return out
}

func sortedUniqueKs(ks []int) []int {
	seen := make(map[int]bool, len(ks))
	out := make([]int, 0, len(ks))
	for _, k := range ks {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
