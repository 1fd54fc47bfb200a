package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"linkgate/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisPendingQueue keeps batched-mode pending clicks in a Redis list so
// multiple server instances can share one flush worker. Drain is LPOP in
// bulk, so entries handed to a flusher are gone from the queue.
type RedisPendingQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisPendingQueue(rdb *redis.Client) *RedisPendingQueue {
	return &RedisPendingQueue{rdb: rdb, key: "pending_clicks"}
}

func (q *RedisPendingQueue) Append(ctx context.Context, entry models.PendingClick) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal pending click: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to append pending click: %w", err)
	}
	return nil
}

func (q *RedisPendingQueue) DrainBatch(ctx context.Context, max int) ([]models.PendingClick, error) {
	if max <= 0 {
		return nil, nil
	}
	vals, err := q.rdb.LPopCount(ctx, q.key, max).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to drain pending clicks: %w", err)
	}

	entries := make([]models.PendingClick, 0, len(vals))
	for _, v := range vals {
		var entry models.PendingClick
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			// Malformed entries are skipped, not requeued.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
