// Package scheduler runs the detection pipeline on a timer, retries failed
// tiles with exponential backoff, and persists progress across restarts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oceansentry/slick-detect/internal/domain"
	"github.com/oceansentry/slick-detect/internal/observability"
	"github.com/oceansentry/slick-detect/internal/pipeline"
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// TileProcessor is the orchestrator capability the runner needs.
type TileProcessor interface {
	ProcessTile(ctx context.Context, aoi domain.AreaOfInterest, tile domain.TileDescriptor) pipeline.TileResult
}

// RunResult summarizes one pass over a single AOI.
type RunResult struct {
	AOI             string
	TilesProcessed  int
	TilesSkipped    int
	TilesFailed     int
	DetectionsFound int
	Errors          []error
}

// Runner is the long-running scheduler loop. One run iterates every enabled
// AOI, discovers new tiles, and hands each to the orchestrator. Failures
// never halt the loop; they are retried per tile and then skipped.
type Runner struct {
	registry  *domain.Registry
	catalog   domain.TileCatalog
	processor TileProcessor
	store     *Store
	trigger   Trigger
	retry     Policy
	interval  time.Duration
	lookback  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	running   atomic.Bool
}

// NewRunner wires the scheduler. lookback bounds the catalog search window
// ending at run time.
func NewRunner(
	registry *domain.Registry,
	catalog domain.TileCatalog,
	processor TileProcessor,
	store *Store,
	trigger Trigger,
	retry Policy,
	interval time.Duration,
	lookback time.Duration,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Runner {
	return &Runner{
		registry:  registry,
		catalog:   catalog,
		processor: processor,
		store:     store,
		trigger:   trigger,
		retry:     retry,
		interval:  interval,
		lookback:  lookback,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the scheduler loop is running.
func (r *Runner) CheckReadiness(context.Context) error {
	if !r.running.Load() {
		return errors.New("scheduler loop not running")
	}
	return nil
}

// Run executes scheduled passes until the context is cancelled. Cancellation
// is cooperative: the in-flight tile completes before the loop stops.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("scheduler started", "interval", r.interval, "lookback", r.lookback)
	r.running.Store(true)
	r.metrics.RunnerActive.Set(1)
	defer func() {
		r.running.Store(false)
		r.metrics.RunnerActive.Set(0)
	}()

	for {
		if r.trigger.Allowed(clock.Now()) {
			r.runScheduled(ctx)
		} else {
			r.logger.Debug("outside run window, skipping scheduled pass")
		}

		if !sleepWithContext(ctx, r.interval) {
			r.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// runScheduled performs one pass over all enabled AOIs. A panic anywhere in
// the pass is caught here and counted as a run failure, so one poisoned tile
// cannot take the loop down.
func (r *Runner) runScheduled(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("scheduled run panicked", "panic", rec)
			r.recordFailure()
		}
	}()

	for _, aoi := range r.registry.ListEnabled() {
		if ctx.Err() != nil {
			return
		}
		res := r.RunOnce(ctx, aoi)
		r.logger.Info("aoi pass complete",
			"aoi", res.AOI,
			"tiles_processed", res.TilesProcessed,
			"tiles_skipped", res.TilesSkipped,
			"tiles_failed", res.TilesFailed,
			"detections", res.DetectionsFound,
			"errors", len(res.Errors),
		)
	}

	if err := r.store.RecordRun(clock.Now()); err != nil {
		r.logger.Error("persist run record failed", "error", err)
	}
}

// RunOnce discovers and processes new tiles for one AOI. Tiles are
// deduplicated by ID and processed in acquisition-date order, so the
// processed frontier per AOI is monotonic.
func (r *Runner) RunOnce(ctx context.Context, aoi domain.AreaOfInterest) RunResult {
	res := RunResult{AOI: aoi.Name}

	now := clock.Now()
	tiles, err := r.searchWithRetry(ctx, aoi, now.Add(-r.lookback), now)
	if err != nil {
		if isCancellation(err) {
			return res
		}
		searchErr := fmt.Errorf("search %s: %w", aoi.Name, &domain.AcquisitionError{Err: err})
		r.logger.Error("tile search failed", "aoi", aoi.Name, "error", err)
		r.recordFailure()
		res.Errors = append(res.Errors, searchErr)
		return res
	}

	for _, tile := range orderTiles(tiles) {
		if ctx.Err() != nil {
			return res
		}
		if r.store.IsProcessed(aoi.Name, tile.ID) {
			res.TilesSkipped++
			continue
		}

		tileRes, err := r.processWithRetry(ctx, aoi, tile)
		if err != nil {
			// Shutdown is not a pipeline failure; leave the streak counter
			// alone so the next start sees the real history.
			if isCancellation(err) {
				return res
			}
			r.metrics.TilesFailed.Inc()
			r.recordFailure()
			res.TilesFailed++
			res.Errors = append(res.Errors, fmt.Errorf("tile %s: %w", tile.ID, err))
			continue
		}

		if tileRes.Skipped {
			res.TilesSkipped++
		} else {
			res.TilesProcessed++
			res.DetectionsFound += len(tileRes.Detections)
			// A pass over only already-processed tiles proves nothing about
			// the failure streak; only a real success clears it.
			r.resetFailures()
		}

		if err := r.store.MarkProcessed(aoi.Name, tile.ID); err != nil {
			r.logger.Error("persist processed tile failed", "tile", tile.ID, "error", err)
			res.Errors = append(res.Errors, err)
		}
	}

	return res
}

// searchWithRetry queries the catalog under the same backoff policy as tile
// processing; discovery outages are as transient as download outages.
func (r *Runner) searchWithRetry(ctx context.Context, aoi domain.AreaOfInterest, from, to time.Time) ([]domain.TileDescriptor, error) {
	for attempt := 0; ; attempt++ {
		tiles, err := r.catalog.Search(ctx, aoi.Geometry(), from, to)
		if err == nil {
			return tiles, nil
		}
		if isCancellation(err) || attempt >= r.retry.MaxRetries {
			return nil, err
		}

		delay := r.retry.DelayFor(attempt)
		r.logger.Warn("tile search failed, retrying",
			"aoi", aoi.Name, "attempt", attempt+1, "delay", delay, "error", err)
		if !sleepWithContext(ctx, delay) {
			return nil, ctx.Err()
		}
	}
}

// processWithRetry drives one tile through the orchestrator, retrying
// transient failures per the policy. Non-transient failures (bad data) and
// exhausted retries are returned to the caller, which moves on to the next
// tile.
func (r *Runner) processWithRetry(ctx context.Context, aoi domain.AreaOfInterest, tile domain.TileDescriptor) (pipeline.TileResult, error) {
	for attempt := 0; ; attempt++ {
		tileRes := r.processor.ProcessTile(ctx, aoi, tile)
		if tileRes.Step == pipeline.StepDone {
			return tileRes, nil
		}

		if !retryable(tileRes.Err) {
			return tileRes, tileRes.Err
		}
		if attempt >= r.retry.MaxRetries {
			r.logger.Error("tile failed after retries",
				"aoi", aoi.Name, "tile", tile.ID, "attempts", attempt+1,
				"step", string(tileRes.FailedStep), "error", tileRes.Err)
			return tileRes, tileRes.Err
		}

		delay := r.retry.DelayFor(attempt)
		r.logger.Warn("tile failed, retrying",
			"aoi", aoi.Name, "tile", tile.ID, "attempt", attempt+1,
			"step", string(tileRes.FailedStep), "delay", delay, "error", tileRes.Err)
		if !sleepWithContext(ctx, delay) {
			return tileRes, ctx.Err()
		}
	}
}

// retryable reports whether a tile failure is worth another attempt. Data
// problems stay broken; everything else is presumed transient.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var preErr *domain.PreprocessingError
	if errors.As(err, &preErr) {
		return false
	}
	if isCancellation(err) {
		return false
	}
	return true
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) recordFailure() {
	n, err := r.store.RecordFailure()
	if err != nil {
		r.logger.Error("persist failure counter failed", "error", err)
	}
	r.metrics.ConsecutiveFailures.Set(float64(n))
}

func (r *Runner) resetFailures() {
	if err := r.store.ResetFailures(); err != nil {
		r.logger.Error("persist failure counter failed", "error", err)
	}
	r.metrics.ConsecutiveFailures.Set(0)
}

// orderTiles deduplicates by ID (overlapping catalog pages may repeat tiles)
// and sorts by acquisition date, oldest first, tie-broken by ID.
func orderTiles(tiles []domain.TileDescriptor) []domain.TileDescriptor {
	seen := make(map[string]struct{}, len(tiles))
	out := make([]domain.TileDescriptor, 0, len(tiles))
	for _, t := range tiles {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].AcquiredAt.Before(out[j].AcquiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
