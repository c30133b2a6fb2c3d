package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/store"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestEnqueueClaimComplete(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "code", map[string]any{"description": "build it"}, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StateQueued, job.State)

	claimed, err := q.Claim(ctx, "code", time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, 1, claimed.Attempts)
	assert.Contains(t, string(claimed.Payload), "build it")

	// Running jobs are not claimable again.
	second, err := q.Claim(ctx, "code", time.Now())
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, q.Complete(ctx, job.ID, map[string]any{"paths": []string{"a.ts"}}))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Contains(t, string(got.Result), "a.ts")
	assert.Empty(t, got.LastError)
}

func TestClaimIsPerType(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "publish", nil, Options{})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "code", time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestDelayedJobNotClaimableEarly(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "publish", nil, Options{Delay: 10 * time.Second})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "publish", time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)

	// Once the delay has elapsed the job becomes visible.
	claimed, err = q.Claim(ctx, "publish", time.Now().Add(11*time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
}

func TestFailRetriesUntilBudgetExhausted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "publish", nil, Options{MaxAttempts: 2})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "publish", time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, q.Fail(ctx, job.ID, errors.New("external API down")))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, got.State)
	assert.Equal(t, "external API down", got.LastError)
	assert.True(t, got.RunAt.After(time.Now().UTC()), "retry should back off")

	// Second attempt after the backoff window.
	claimed, err = q.Claim(ctx, "publish", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 2, claimed.Attempts)

	require.NoError(t, q.Fail(ctx, job.ID, errors.New("still down")))

	got, err = q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "still down", got.LastError)
}

func TestSingleAttemptJobFailsImmediately(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "code", nil, Options{})
	require.NoError(t, err)

	_, err = q.Claim(ctx, "code", time.Now())
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, job.ID, errors.New("bad output")))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
}

func TestDropCompletedRemovesRow(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "code", nil, Options{DropCompleted: true})
	require.NoError(t, err)

	_, err = q.Claim(ctx, "code", time.Now())
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, job.ID, nil))

	_, err = q.Get(ctx, job.ID)
	assert.True(t, store.IsNotFound(err))
}

func TestOldestDueJobClaimedFirst(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "code", nil, Options{})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "code", nil, Options{Delay: time.Millisecond})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "code", time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
}

func TestRequeueStuckJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "code", nil, Options{})
	require.NoError(t, err)

	_, err = q.Claim(ctx, "code", time.Now())
	require.NoError(t, err)

	require.NoError(t, q.Requeue(ctx, job.ID))

	claimed, err := q.Claim(ctx, "code", time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 2, claimed.Attempts)
}

func TestGetUnknownJob(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Get(context.Background(), "nope")
	assert.True(t, store.IsNotFound(err))
}
