package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/domain"
)

// waitForState polls until the job reaches a terminal state or the
// deadline passes.
func waitForState(t *testing.T, q *Queue, jobID string, want JobState) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached state %s", jobID, want)
	return nil
}

func TestPoolCompletesJob(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, job *Job) (any, error) {
		return map[string]any{"ok": true}, nil
	}
	pool := NewPool(q, "code", 1, handler, 10*time.Millisecond)
	go pool.Run(ctx)

	job, err := q.Enqueue(ctx, "code", nil, Options{})
	require.NoError(t, err)

	got := waitForState(t, q, job.ID, StateCompleted)
	assert.Contains(t, string(got.Result), `"ok":true`)
}

func TestPoolRecordsFailureReason(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, job *Job) (any, error) {
		return nil, errors.New("model output rejected")
	}
	pool := NewPool(q, "code", 1, handler, 10*time.Millisecond)
	go pool.Run(ctx)

	job, err := q.Enqueue(ctx, "code", nil, Options{})
	require.NoError(t, err)

	got := waitForState(t, q, job.ID, StateFailed)
	assert.Equal(t, "model output rejected", got.LastError)
}

func TestPoolHonorsConcurrencyLimit(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running, peak int64
	handler := func(ctx context.Context, job *Job) (any, error) {
		n := atomic.AddInt64(&running, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt64(&running, -1)
		return nil, nil
	}
	pool := NewPool(q, "code", 2, handler, 5*time.Millisecond)
	go pool.Run(ctx)

	var jobs []string
	for i := 0; i < 6; i++ {
		job, err := q.Enqueue(ctx, "code", nil, Options{})
		require.NoError(t, err)
		jobs = append(jobs, job.ID)
	}
	for _, id := range jobs {
		waitForState(t, q, id, StateCompleted)
	}

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestWorkersBuildFromDispatcher(t *testing.T) {
	d, q, _ := newTestDispatcher(t)

	workers, err := NewWorkers(q, d, map[string]int{"code": 1}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, workers.pools, 6)

	ctx, cancel := context.WithCancel(context.Background())
	go workers.Run(ctx)

	job, err := d.EnqueueStep(ctx, domain.Step{ID: "s1", Type: domain.StepCode, Description: "add a tool"})
	require.NoError(t, err)
	waitForState(t, q, job.ID, StateCompleted)
	cancel()
}
