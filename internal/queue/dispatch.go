package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/postpilot/postpilot/internal/agent"
	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/logging"
	"github.com/postpilot/postpilot/internal/store"
)

// JobPlan is the job type carrying a goal for the planning worker.
const JobPlan = "plan"

// PublishPayload is the payload of a publish job.
type PublishPayload struct {
	PostID int64     `json:"post_id"`
	RunAt  time.Time `json:"run_at"`
}

// PlanPayload is the payload of a plan job.
type PlanPayload struct {
	Goal string `json:"goal"`
}

// Handler processes one claimed job and returns its result.
type Handler func(ctx context.Context, job *Job) (any, error)

// Dispatcher wires step types to their workers: generation steps to
// the generation agents, publish jobs to the store, plan jobs to the
// planning agent with fan-out.
type Dispatcher struct {
	queue     *Queue
	store     *store.Store
	generator *agent.Generator
	planner   *agent.Planner
	log       *logging.Logger
}

// NewDispatcher builds a dispatcher over explicit collaborators.
func NewDispatcher(q *Queue, s *store.Store, g *agent.Generator, p *agent.Planner) *Dispatcher {
	return &Dispatcher{queue: q, store: s, generator: g, planner: p, log: logging.New("queue.dispatch")}
}

// generationAttempts is the budget for model-backed steps: one shot,
// since replaying a failed generation rarely converges.
const generationAttempts = 1

// publishAttempts absorbs transient failures of the external fan-out.
const publishAttempts = 3

// EnqueueStep hosts one plan step on the queue as a job of its type.
func (d *Dispatcher) EnqueueStep(ctx context.Context, step domain.Step) (*Job, error) {
	if !domain.ValidStepType(string(step.Type)) {
		return nil, fmt.Errorf("unknown step type %q", step.Type)
	}

	attempts := generationAttempts
	if step.Type == domain.StepPublish {
		attempts = publishAttempts
	}

	job, err := d.queue.Enqueue(ctx, string(step.Type), step, Options{MaxAttempts: attempts})
	if err != nil {
		return nil, err
	}
	d.log.Info("step_enqueued", map[string]any{"step": step.ID, "type": string(step.Type), "job": job.ID})
	return job, nil
}

// EnqueuePublish schedules the durable publish job for a post at a
// future instant: delay = max(0, runAt - now).
func (d *Dispatcher) EnqueuePublish(ctx context.Context, postID int64, runAt time.Time) (string, error) {
	job, err := d.queue.Enqueue(ctx, string(domain.StepPublish),
		PublishPayload{PostID: postID, RunAt: runAt.UTC()},
		Options{Delay: time.Until(runAt), MaxAttempts: publishAttempts})
	if err != nil {
		return "", err
	}
	d.log.Info("publish_enqueued", map[string]any{"post": postID, "job": job.ID})
	return job.ID, nil
}

// EnqueuePlan hosts a goal on the queue for the planning worker.
func (d *Dispatcher) EnqueuePlan(ctx context.Context, goal string) (*Job, error) {
	return d.queue.Enqueue(ctx, JobPlan, PlanPayload{Goal: goal}, Options{MaxAttempts: 1})
}

// Handler returns the processing function for a job type.
func (d *Dispatcher) Handler(jobType string) (Handler, error) {
	switch jobType {
	case string(domain.StepCode), string(domain.StepFrontend),
		string(domain.StepIntegration), string(domain.StepContent):
		return d.handleGeneration, nil
	case string(domain.StepPublish):
		return d.handlePublish, nil
	case JobPlan:
		return d.handlePlan, nil
	}
	return nil, fmt.Errorf("no handler for job type %q", jobType)
}

func (d *Dispatcher) handleGeneration(ctx context.Context, job *Job) (any, error) {
	var step domain.Step
	if err := json.Unmarshal(job.Payload, &step); err != nil {
		return nil, fmt.Errorf("decode step payload: %w", err)
	}
	return d.generator.Generate(ctx, domain.StepType(job.Type), step.Description, step.Inputs)
}

// handlePublish loads the post with its linked accounts and records
// the publish. A post with no linked accounts fails the job: there is
// nowhere to publish to.
func (d *Dispatcher) handlePublish(ctx context.Context, job *Job) (any, error) {
	var payload PublishPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode publish payload: %w", err)
	}

	post, err := d.store.GetPost(ctx, payload.PostID)
	if err != nil {
		return nil, err
	}
	if len(post.Accounts) == 0 {
		return nil, fmt.Errorf("post %d has no linked accounts", post.ID)
	}

	now := time.Now().UTC()
	if err := d.store.MarkPublished(ctx, post.ID, now); err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(post.Accounts))
	for _, account := range post.Accounts {
		results = append(results, map[string]any{
			"account":  account.ID,
			"platform": string(account.Platform),
			"status":   "published",
		})
	}
	d.log.Info("post_published", map[string]any{"post": post.ID, "accounts": len(post.Accounts)})
	return map[string]any{"post_id": post.ID, "published_at": now, "results": results}, nil
}

// handlePlan runs the planning agent and fans the steps out as
// individual jobs. Planning is total, so this handler fails only on
// queue errors.
func (d *Dispatcher) handlePlan(ctx context.Context, job *Job) (any, error) {
	var payload PlanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode plan payload: %w", err)
	}

	plan := d.planner.Plan(ctx, payload.Goal)

	jobIDs := make(map[string]string, len(plan.Steps))
	for _, step := range plan.Steps {
		child, err := d.EnqueueStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("fan out step %s: %w", step.ID, err)
		}
		jobIDs[step.ID] = child.ID
	}
	return map[string]any{"goal": payload.Goal, "steps": len(plan.Steps), "jobs": jobIDs}, nil
}
