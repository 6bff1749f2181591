package partner

import (
	"context"
	"fmt"
	"slices"

	"github.com/goharguide/partnerbot/internal/repository"
)

// Queue is the FIFO waiting list of user IDs. Every successful mutation
// persists the full ordered queue before returning; on a store failure the
// in-memory slice is rolled back so memory never runs ahead of the store.
// Callers serialize access through the manager's mutex.
type Queue struct {
	repo    repository.QueueRepository
	waiting []string
}

func NewQueue(repo repository.QueueRepository) *Queue {
	return &Queue{repo: repo}
}

func (q *Queue) Load(ctx context.Context) error {
	waiting, err := q.repo.LoadQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}
	q.waiting = waiting
	return nil
}

func (q *Queue) Len() int {
	return len(q.waiting)
}

func (q *Queue) Contains(userID string) bool {
	return slices.Contains(q.waiting, userID)
}

func (q *Queue) Snapshot() []string {
	return slices.Clone(q.waiting)
}

func (q *Queue) Enqueue(ctx context.Context, userID string) error {
	if q.Contains(userID) {
		return nil
	}
	q.waiting = append(q.waiting, userID)
	if err := q.repo.SaveQueue(ctx, q.waiting); err != nil {
		q.waiting = q.waiting[:len(q.waiting)-1]
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	return nil
}

// Remove withdraws a queued user. Returns false when the user was not queued.
func (q *Queue) Remove(ctx context.Context, userID string) (bool, error) {
	idx := slices.Index(q.waiting, userID)
	if idx < 0 {
		return false, nil
	}
	prev := slices.Clone(q.waiting)
	q.waiting = slices.Delete(q.waiting, idx, idx+1)
	if err := q.repo.SaveQueue(ctx, q.waiting); err != nil {
		q.waiting = prev
		return false, fmt.Errorf("failed to persist queue: %w", err)
	}
	return true, nil
}

// PopHead dequeues the longest-waiting user. Returns false when empty.
func (q *Queue) PopHead(ctx context.Context) (string, bool, error) {
	if len(q.waiting) == 0 {
		return "", false, nil
	}
	head := q.waiting[0]
	prev := q.waiting
	q.waiting = slices.Clone(q.waiting[1:])
	if err := q.repo.SaveQueue(ctx, q.waiting); err != nil {
		q.waiting = prev
		return "", false, fmt.Errorf("failed to persist queue: %w", err)
	}
	return head, true, nil
}

// PushHead restores a user to the front of the queue, preserving FIFO
// fairness after an aborted pairing transaction.
func (q *Queue) PushHead(ctx context.Context, userID string) error {
	prev := q.waiting
	q.waiting = append([]string{userID}, q.waiting...)
	if err := q.repo.SaveQueue(ctx, q.waiting); err != nil {
		q.waiting = prev
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	return nil
}
