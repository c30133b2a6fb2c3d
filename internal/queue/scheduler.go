package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/postpilot/postpilot/internal/logging"
	"github.com/postpilot/postpilot/internal/store"
)

// Scheduler is the backstop poller: it scans the store for scheduled
// posts whose time has passed and publishes them. The primary path is
// the delayed publish job enqueued by schedule_post; the scheduler
// catches posts whose job was lost or scheduled outside the queue.
type Scheduler struct {
	store    *store.Store
	interval time.Duration
	log      *logging.Logger
}

// NewScheduler builds a poller with the given scan interval.
func NewScheduler(s *store.Store, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{store: s, interval: interval, log: logging.New("queue.scheduler")}
}

// Run blocks until ctx is done, scanning once per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx, time.Now()); err != nil {
				s.log.Error("scan_failed", nil, err)
			}
		}
	}
}

// Tick publishes every due post once. Posts without linked accounts
// are skipped with a warning and picked up again next scan.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	due, err := s.store.DuePosts(ctx, now)
	if err != nil {
		return fmt.Errorf("scan due posts: %w", err)
	}

	for _, post := range due {
		full, err := s.store.GetPost(ctx, post.ID)
		if err != nil {
			s.log.Error("load_due_post", map[string]any{"post": post.ID}, err)
			continue
		}
		if len(full.Accounts) == 0 {
			s.log.Warn("due_post_without_accounts", map[string]any{"post": post.ID}, nil)
			continue
		}

		if err := s.store.MarkPublished(ctx, post.ID, now); err != nil {
			s.log.Error("publish_due_post", map[string]any{"post": post.ID}, err)
			continue
		}
		s.log.Info("due_post_published", map[string]any{"post": post.ID})
	}
	return nil
}
