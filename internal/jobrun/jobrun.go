// Package jobrun implements the Job Runtime: a fixed worker pool, job
// dispatch with dedup-key mutual exclusion, deadline-driven cooperative
// cancellation, and the pending/running/succeeded/failed/cancelled state
// machine of spec.md §4.7. Grounded on grand-thief-cash-chaos's cronjob
// Executor (buffered channel worker pool, per-run context.WithTimeout,
// cancelMap/activePerTask bookkeeping) but built with plain constructor
// injection instead of that example's internal DI framework, per the
// Design Notes' "pass as explicit dependencies" guidance.
package jobrun

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"leeksaver/internal/errkind"
	"leeksaver/internal/repository"
)

// Status is a job's position in the pending -> running ->
// {succeeded,failed,cancelled} state machine.
type Status int

const (
	Pending Status = iota
	Running
	Succeeded
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is a unit of work submitted to the runtime. DedupKey, if non-empty,
// enforces at-most-one concurrent run (P4); Deadline, if non-zero, bounds
// the run and drives cooperative cancellation. TargetCode, if set,
// scopes the recorded SyncError to a single symbol.
type Job struct {
	Name       string
	TargetCode string
	DedupKey   string
	Deadline   time.Duration
	Run        func(ctx context.Context) error
}

// Result is the outcome of one completed job, retained for `sync status`.
type Result struct {
	Name      string
	Status    Status
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// Runtime is the worker pool described in spec.md §4.7.
type Runtime struct {
	logger    *zap.Logger
	syncErrs  *repository.SyncErrorRepository
	workers   int
	ch        chan *Job
	wg        sync.WaitGroup

	mu         sync.Mutex
	inFlight   map[string]bool          // dedup_key -> running
	cancelFns  map[string]context.CancelFunc // job name -> cancel
	lastResult map[string]Result        // job name -> most recent result
	dedupSkips int64

	rootCancel context.CancelFunc
	closed     bool
}

// New builds a Runtime with the given worker pool size (spec default 4).
func New(workers int, logger *zap.Logger, syncErrs *repository.SyncErrorRepository) *Runtime {
	if workers <= 0 {
		workers = 4
	}
	return &Runtime{
		logger:     logger,
		syncErrs:   syncErrs,
		workers:    workers,
		ch:         make(chan *Job, 1024),
		inFlight:   make(map[string]bool),
		cancelFns:  make(map[string]context.CancelFunc),
		lastResult: make(map[string]Result),
	}
}

// Start launches the worker pool. The workers' loop context is NOT
// derived from the ctx passed in here — the same lesson the
// grand-thief-cash-chaos executor documents: a lifecycle manager that
// cancels its startup context right after Start returns would otherwise
// kill every worker immediately.
func (r *Runtime) Start(_ context.Context) {
	loopCtx, cancel := context.WithCancel(context.Background())
	r.rootCancel = cancel
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(loopCtx, i)
	}
}

// Stop cancels all workers and waits for in-flight jobs to observe
// cancellation and return.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	if r.rootCancel != nil {
		r.rootCancel()
	}
	r.wg.Wait()
}

// Submit enqueues a job. If job.DedupKey is already in flight, this is a
// no-op (P4) and the dedup-skip counter is incremented.
func (r *Runtime) Submit(job *Job) bool {
	if job.DedupKey != "" {
		r.mu.Lock()
		if r.inFlight[job.DedupKey] {
			r.dedupSkips++
			r.mu.Unlock()
			r.logger.Info("job dedup-skipped", zap.String("dedup_key", job.DedupKey))
			return false
		}
		r.inFlight[job.DedupKey] = true
		r.mu.Unlock()
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return false
	}
	r.ch <- job
	return true
}

// DedupSkipped returns the running total of jobs dropped due to an
// in-flight dedup_key collision (the jobs_dedup_skipped metric of
// scenario 5).
func (r *Runtime) DedupSkipped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dedupSkips
}

// LastResult returns the most recent completed Result for a job name.
func (r *Runtime) LastResult(name string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.lastResult[name]
	return res, ok
}

// Cancel requests cooperative cancellation of the named job, if running.
func (r *Runtime) Cancel(name string) {
	r.mu.Lock()
	cancel, ok := r.cancelFns[name]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

func (r *Runtime) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-r.ch:
			if !ok {
				return
			}
			if job == nil {
				continue
			}
			r.execute(ctx, job)
		}
	}
}

func (r *Runtime) execute(ctx context.Context, job *Job) {
	runCtx := ctx
	var cancel context.CancelFunc
	if job.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, job.Deadline)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	r.mu.Lock()
	r.cancelFns[job.Name] = cancel
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		delete(r.cancelFns, job.Name)
		if job.DedupKey != "" {
			delete(r.inFlight, job.DedupKey)
		}
		r.mu.Unlock()
	}()

	started := time.Now()
	r.logger.Info("job started", zap.String("job", job.Name))

	err := job.Run(runCtx)

	result := Result{Name: job.Name, StartedAt: started, EndedAt: time.Now(), Err: err}
	switch {
	case err == nil:
		result.Status = Succeeded
		if r.syncErrs != nil {
			target := job.TargetCode
			if target == "" {
				target = "*"
			}
			if resolveErr := r.syncErrs.Resolve(context.Background(), job.Name, target); resolveErr != nil {
				r.logger.Warn("failed to resolve sync error", zap.Error(resolveErr))
			}
		}
		r.logger.Info("job succeeded", zap.String("job", job.Name), zap.Duration("elapsed", result.EndedAt.Sub(started)))

	case errkind.Is(err, errkind.Cancelled) || runCtx.Err() == context.Canceled && job.Deadline == 0:
		result.Status = Cancelled
		r.logger.Warn("job cancelled", zap.String("job", job.Name))

	case runCtx.Err() == context.DeadlineExceeded:
		result.Status = Cancelled
		r.recordFailure(job, errkind.New(errkind.DeadlineExceeded, job.Name, err))
		r.logger.Warn("job deadline exceeded, cancelled", zap.String("job", job.Name))

	default:
		result.Status = Failed
		r.recordFailure(job, err)
		r.logger.Error("job failed", zap.String("job", job.Name), zap.Error(err))
	}

	r.mu.Lock()
	r.lastResult[job.Name] = result
	r.mu.Unlock()
}

func (r *Runtime) recordFailure(job *Job, err error) {
	if r.syncErrs == nil {
		return
	}
	target := job.TargetCode
	if target == "" {
		target = "*"
	}
	kind := errkind.KindOf(err)
	if recErr := r.syncErrs.Record(context.Background(), job.Name, target, kind.String(), fmt.Sprintf("%v", err)); recErr != nil {
		r.logger.Warn("failed to record sync error", zap.Error(recErr))
	}
}
