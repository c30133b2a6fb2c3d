package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/agent"
	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/store"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Queue, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	q, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	s, err := store.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	generator := agent.NewGenerator(nil, t.TempDir(), "m", true)
	planner := agent.NewPlanner(nil, "m", true)
	return NewDispatcher(q, s, generator, planner), q, s
}

func linkedPost(t *testing.T, s *store.Store) *domain.Post {
	t.Helper()
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "p", 1)
	require.NoError(t, err)
	post, err := s.CreatePost(ctx, "caption", project.ID)
	require.NoError(t, err)
	account, err := s.CreateAccount(ctx, "@brand", domain.PlatformInstagram, 1)
	require.NoError(t, err)
	post, err = s.LinkPostAccounts(ctx, post.ID, []int64{account.ID}, store.LinkAppend)
	require.NoError(t, err)
	return post
}

func TestEnqueueStepAttemptBudgets(t *testing.T) {
	d, q, _ := newTestDispatcher(t)
	ctx := context.Background()

	gen, err := d.EnqueueStep(ctx, domain.Step{ID: "s1", Type: domain.StepCode, Description: "x"})
	require.NoError(t, err)
	pub, err := d.EnqueueStep(ctx, domain.Step{ID: "s2", Type: domain.StepPublish, Description: "y"})
	require.NoError(t, err)

	got, err := q.Get(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MaxAttempts)

	got, err = q.Get(ctx, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxAttempts)
}

func TestEnqueueStepRejectsUnknownType(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	_, err := d.EnqueueStep(context.Background(), domain.Step{ID: "s", Type: "deploy", Description: "x"})
	assert.Error(t, err)
}

func TestEnqueuePublishDelay(t *testing.T) {
	d, q, _ := newTestDispatcher(t)
	ctx := context.Background()

	jobID, err := d.EnqueuePublish(ctx, 7, time.Now().Add(10*time.Second))
	require.NoError(t, err)

	// Not claimable before the target instant.
	claimed, err := q.Claim(ctx, string(domain.StepPublish), time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)

	claimed, err = q.Claim(ctx, string(domain.StepPublish), time.Now().Add(11*time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, jobID, claimed.ID)
}

func TestEnqueuePublishPastInstantIsImmediate(t *testing.T) {
	d, q, _ := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.EnqueuePublish(ctx, 7, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, string(domain.StepPublish), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, claimed)
}

func TestHandleGenerationProducesFiles(t *testing.T) {
	d, q, _ := newTestDispatcher(t)
	ctx := context.Background()

	job, err := d.EnqueueStep(ctx, domain.Step{ID: "s1", Type: domain.StepCode, Description: "add a tool"})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, string(domain.StepCode), time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)

	handler, err := d.Handler(claimed.Type)
	require.NoError(t, err)

	result, err := handler(ctx, claimed)
	require.NoError(t, err)
	gen := result.(*agent.GenerateResult)
	require.Len(t, gen.Paths, 1)
	assert.Contains(t, gen.Paths[0], "app/source/")

	require.NoError(t, q.Complete(ctx, job.ID, result))
	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
}

func TestHandlePublishRequiresLinkedAccounts(t *testing.T) {
	d, _, s := newTestDispatcher(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "p", 1)
	require.NoError(t, err)
	post, err := s.CreatePost(ctx, "caption", project.ID)
	require.NoError(t, err)

	payload, _ := json.Marshal(PublishPayload{PostID: post.ID})
	handler, err := d.Handler(string(domain.StepPublish))
	require.NoError(t, err)

	_, err = handler(ctx, &Job{Type: string(domain.StepPublish), Payload: payload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no linked accounts")
}

func TestHandlePublishMarksPostPublished(t *testing.T) {
	d, _, s := newTestDispatcher(t)
	ctx := context.Background()

	post := linkedPost(t, s)

	payload, _ := json.Marshal(PublishPayload{PostID: post.ID})
	handler, err := d.Handler(string(domain.StepPublish))
	require.NoError(t, err)

	result, err := handler(ctx, &Job{Type: string(domain.StepPublish), Payload: payload})
	require.NoError(t, err)

	out := result.(map[string]any)
	results := out["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, "published", results[0]["status"])

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PostPublished, got.Status)
}

func TestHandlePlanFansOutSteps(t *testing.T) {
	d, q, _ := newTestDispatcher(t)
	ctx := context.Background()

	job, err := d.EnqueuePlan(ctx, "launch a product")
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, JobPlan, time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)

	handler, err := d.Handler(JobPlan)
	require.NoError(t, err)

	result, err := handler(ctx, claimed)
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, 3, out["steps"])

	// The mock planner's fallback fans out one job per step type.
	for _, stepType := range []domain.StepType{domain.StepCode, domain.StepFrontend, domain.StepIntegration} {
		child, err := q.Claim(ctx, string(stepType), time.Now())
		require.NoError(t, err)
		assert.NotNil(t, child, string(stepType))
	}
}

func TestHandlerUnknownType(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	_, err := d.Handler("deploy")
	assert.Error(t, err)
}
