package jobrun

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	r := New(2, zap.NewNop(), nil)
	r.Start(context.Background())
	t.Cleanup(r.Stop)
	return r
}

func waitForResult(t *testing.T, r *Runtime, name string, timeout time.Duration) Result {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if res, ok := r.LastResult(name); ok {
			return res
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no result for job %q within %s", name, timeout)
	return Result{}
}

func TestSubmit_RunsJobToCompletion(t *testing.T) {
	r := newTestRuntime(t)

	var ran int32
	submitted := r.Submit(&Job{
		Name: "test-job",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
	})

	require.True(t, submitted)
	res := waitForResult(t, r, "test-job", time.Second)
	assert.Equal(t, Succeeded, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestSubmit_DedupSkipsInFlightKey(t *testing.T) {
	r := newTestRuntime(t)

	release := make(chan struct{})
	started := make(chan struct{}, 2)

	first := r.Submit(&Job{
		Name:     "job-a",
		DedupKey: "shared-key",
		Run: func(ctx context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		},
	})
	require.True(t, first)

	<-started // wait until the first job has actually started running

	second := r.Submit(&Job{
		Name:     "job-b",
		DedupKey: "shared-key",
		Run: func(ctx context.Context) error {
			started <- struct{}{}
			return nil
		},
	})
	assert.False(t, second)
	assert.Equal(t, int64(1), r.DedupSkipped())

	close(release)
}

func TestSubmit_DistinctDedupKeysBothRun(t *testing.T) {
	r := newTestRuntime(t)

	var wg sync.WaitGroup
	wg.Add(2)

	r.Submit(&Job{Name: "a", DedupKey: "key-a", Run: func(ctx context.Context) error { wg.Done(); return nil }})
	r.Submit(&Job{Name: "b", DedupKey: "key-b", Run: func(ctx context.Context) error { wg.Done(); return nil }})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("jobs with distinct dedup keys did not both run")
	}
}

func TestExecute_DeadlineExceededMarksCancelled(t *testing.T) {
	r := newTestRuntime(t)

	r.Submit(&Job{
		Name:     "slow-job",
		Deadline: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	res := waitForResult(t, r, "slow-job", time.Second)
	assert.Equal(t, Cancelled, res.Status)
}

func TestExecute_FailedJobRecordsFailureStatus(t *testing.T) {
	r := newTestRuntime(t)

	r.Submit(&Job{
		Name: "failing-job",
		Run: func(ctx context.Context) error {
			return errors.New("boom")
		},
	})

	res := waitForResult(t, r, "failing-job", time.Second)
	assert.Equal(t, Failed, res.Status)
	assert.Error(t, res.Err)
}

func TestStop_RejectsFurtherSubmissions(t *testing.T) {
	r := New(1, zap.NewNop(), nil)
	r.Start(context.Background())
	r.Stop()

	submitted := r.Submit(&Job{Name: "too-late", Run: func(ctx context.Context) error { return nil }})
	assert.False(t, submitted)
}
