// Package syncer implements the per-dataset Syncers of spec.md §4.5: each
// resolves scope, fetches through the Rate Gate, transforms, and upserts
// through a Repository, recording SyncErrors on failure. Grounded on the
// teacher's DataFetcher concurrency idiom (errgroup.WithContext +
// SetLimit, as in FetchDailyDataOptimized) generalized across datasets,
// and on original_source/app/sync/*.py's one-syncer-per-file shape.
package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"leeksaver/internal/errkind"
	"leeksaver/internal/repository"
)

// Scope narrows one syncer run: either an explicit code list, or (when
// Codes is nil) "resolve the syncer's default scope" — all active
// symbols for most datasets, the watchlist for intraday ones.
type Scope struct {
	Codes []string
	Date  string // YYYYMMDD; meaning is per-syncer (trade date, end_date, ...)
}

// Report is per-shard/per-run progress, pushed to the Job Runtime per
// spec.md §4.5 ("each shard reports {fetched, accepted, written, errors}").
type Report struct {
	Fetched  int
	Accepted int
	Written  int
	Errors   int
}

func (r *Report) merge(other Report) {
	r.Fetched += other.Fetched
	r.Accepted += other.Accepted
	r.Written += other.Written
	r.Errors += other.Errors
}

// Syncer is the uniform contract the Job Runtime dispatches against.
type Syncer interface {
	Name() string
	Run(ctx context.Context, scope Scope) (Report, error)
}

// ShardThreshold is the default shard size (spec.md §4.5): per-code
// syncers split their scope into shards of at most this many codes and run
// the shards one after another inside the same job, checking for
// cancellation between shards. Shards are not enqueued as separate jobs.
const ShardThreshold = 100

// Shard splits codes into chunks of at most size, preserving order.
func Shard(codes []string, size int) [][]string {
	if size <= 0 {
		size = ShardThreshold
	}
	var shards [][]string
	for i := 0; i < len(codes); i += size {
		end := i + size
		if end > len(codes) {
			end = len(codes)
		}
		shards = append(shards, codes[i:end])
	}
	return shards
}

// recordSyncError bubbles a per-target failure to the SyncError table
// without swallowing it — the syncer still returns err to its caller.
// This is the one place that historical bug (single-symbol failures
// silently lost) is structurally forbidden: every call site that reaches
// here also propagates err upward.
func recordSyncError(ctx context.Context, errs *repository.SyncErrorRepository, logger *zap.Logger, taskName, code string, err error) {
	kind := errkind.KindOf(err)
	if recErr := errs.Record(ctx, taskName, code, kind.String(), err.Error()); recErr != nil {
		logger.Warn("failed to record sync error", zap.String("task", taskName), zap.String("code", code), zap.Error(recErr))
	}
}

func resolveSyncError(ctx context.Context, errs *repository.SyncErrorRepository, logger *zap.Logger, taskName, code string) {
	if resolveErr := errs.Resolve(ctx, taskName, code); resolveErr != nil {
		logger.Warn("failed to resolve sync error", zap.String("task", taskName), zap.String("code", code), zap.Error(resolveErr))
	}
}

// checkCancelled is the cooperative cancellation checkpoint syncers must
// poll at shard boundaries per spec.md §5 ("not mid-shard").
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errkind.New(errkind.Cancelled, "syncer", ctx.Err())
	default:
		return nil
	}
}

// Registry maps syncer name -> Syncer, resolved at the composition root
// and consulted by the Job Runtime dispatch loop and the `sync trigger`
// CLI.
type Registry map[string]Syncer

func (r Registry) Get(name string) (Syncer, error) {
	s, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown syncer %q", name)
	}
	return s, nil
}
