package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/logging"
)

// DefaultConcurrency is the per-type worker pool sizing: generation
// pools run two slots to bound simultaneous model calls, integration
// and publish run single-file to serialize their side effects.
func DefaultConcurrency() map[string]int {
	return map[string]int{
		string(domain.StepCode):        2,
		string(domain.StepFrontend):    2,
		string(domain.StepContent):     2,
		string(domain.StepIntegration): 1,
		string(domain.StepPublish):     1,
		JobPlan:                        1,
	}
}

// Pool consumes jobs of one type with a fixed number of slots. Each
// slot claims and processes one job at a time.
type Pool struct {
	queue       *Queue
	jobType     string
	concurrency int
	handler     Handler
	poll        time.Duration
	log         *logging.Logger
}

// NewPool builds a pool for one job type.
func NewPool(q *Queue, jobType string, concurrency int, handler Handler, poll time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Pool{
		queue:       q,
		jobType:     jobType,
		concurrency: concurrency,
		handler:     handler,
		poll:        poll,
		log:         logging.New("queue.worker"),
	}
}

// Run blocks until ctx is done, processing claimable jobs.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for slot := 0; slot < p.concurrency; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.runSlot(ctx, fmt.Sprintf("%s-%d", p.jobType, slot))
		}(slot)
	}
	wg.Wait()
}

func (p *Pool) runSlot(ctx context.Context, slotID string) {
	log := p.log.WithWorker(slotID)
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Claim(ctx, p.jobType, time.Now())
		if err != nil {
			log.Error("claim_failed", nil, err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.poll):
			}
			continue
		}

		p.process(ctx, log.WithJob(job.ID), job)
	}
}

// process runs the handler and records the job's terminal state. The
// handler's error, not the worker, decides failure; recording errors
// are logged and the job is left for redelivery.
func (p *Pool) process(ctx context.Context, log *logging.Logger, job *Job) {
	start := time.Now()
	result, err := p.handler(ctx, job)
	if err != nil {
		log.Warn("job_failed", map[string]any{"attempt": job.Attempts}, err)
		if failErr := p.queue.Fail(ctx, job.ID, err); failErr != nil {
			log.Error("record_failure", nil, failErr)
		}
		return
	}

	if err := p.queue.Complete(ctx, job.ID, result); err != nil {
		log.Error("record_completion", nil, err)
		return
	}
	log.TimedEvent("job_completed", start, map[string]any{"type": job.Type})
}

// Workers hosts one pool per job type and runs them together.
type Workers struct {
	pools []*Pool
}

// NewWorkers builds the full pool set from the dispatcher's handlers.
// concurrency overrides DefaultConcurrency entries when non-nil.
func NewWorkers(q *Queue, d *Dispatcher, concurrency map[string]int, poll time.Duration) (*Workers, error) {
	defaults := DefaultConcurrency()
	if concurrency != nil {
		for jobType, n := range concurrency {
			defaults[jobType] = n
		}
	}

	w := &Workers{}
	for jobType, n := range defaults {
		handler, err := d.Handler(jobType)
		if err != nil {
			return nil, err
		}
		w.pools = append(w.pools, NewPool(q, jobType, n, handler, poll))
	}
	return w, nil
}

// Run blocks until ctx is done.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, pool := range w.pools {
		wg.Add(1)
		go func(p *Pool) {
			defer wg.Done()
			p.Run(ctx)
		}(pool)
	}
	wg.Wait()
}
