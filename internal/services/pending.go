package services

import (
	"context"
	"sync"

	"linkgate/internal/models"
)

// PendingQueue buffers batched-mode clicks between request handlers and
// the flush worker. DrainBatch is take-and-remove: drained entries are no
// longer in the queue, so a failed flush loses them rather than
// double-processing.
type PendingQueue interface {
	Append(ctx context.Context, entry models.PendingClick) error
	DrainBatch(ctx context.Context, max int) ([]models.PendingClick, error)
}

// MemoryPendingQueue is the single-process default. Safe for concurrent
// appends from request handlers and bulk drains from one flush worker.
type MemoryPendingQueue struct {
	mu      sync.Mutex
	entries []models.PendingClick
}

func NewMemoryPendingQueue() *MemoryPendingQueue {
	return &MemoryPendingQueue{}
}

func (q *MemoryPendingQueue) Append(_ context.Context, entry models.PendingClick) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	return nil
}

func (q *MemoryPendingQueue) DrainBatch(_ context.Context, max int) ([]models.PendingClick, error) {
	if max <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := max
	if n > len(q.entries) {
		n = len(q.entries)
	}
	if n == 0 {
		return nil, nil
	}

	batch := make([]models.PendingClick, n)
	copy(batch, q.entries[:n])
	q.entries = append(q.entries[:0:0], q.entries[n:]...)
	return batch, nil
}

func (q *MemoryPendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
