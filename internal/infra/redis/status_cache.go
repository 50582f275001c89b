package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/handover/docbatch/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultStatusTTL = time.Hour

type cachedBatch struct {
	ID             string            `json:"id"`
	Intent         domain.Intent     `json:"intent"`
	Initiator      string            `json:"initiator"`
	TotalCount     int               `json:"totalCount"`
	SucceededCount int               `json:"succeededCount"`
	FailedCount    int               `json:"failedCount"`
	FailedUnitIDs  []string          `json:"failedUnitIds"`
	State          domain.BatchState `json:"state"`
	StartedAt      time.Time         `json:"startedAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

// BatchStatusCache keeps terminal batch snapshots so status polling skips the database.
type BatchStatusCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewBatchStatusCache(client *goredis.Client, ttl time.Duration) (*BatchStatusCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &BatchStatusCache{client: client, ttl: ttl}, nil
}

// Get returns domain.ErrNotFound on a cache miss.
func (c *BatchStatusCache) Get(ctx context.Context, batchID string) (*domain.Batch, error) {
	raw, err := c.client.Get(ctx, statusKey(batchID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch status: %w", err)
	}

	var cached cachedBatch
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode batch status: %w", err)
	}

	return &domain.Batch{
		ID:             cached.ID,
		Intent:         cached.Intent,
		Initiator:      cached.Initiator,
		TotalCount:     cached.TotalCount,
		SucceededCount: cached.SucceededCount,
		FailedCount:    cached.FailedCount,
		FailedUnitIDs:  cached.FailedUnitIDs,
		State:          cached.State,
		StartedAt:      cached.StartedAt,
		CompletedAt:    cached.CompletedAt,
	}, nil
}

// Set stores the snapshot only when the batch is terminal; a processing batch still changes.
func (c *BatchStatusCache) Set(ctx context.Context, b *domain.Batch) error {
	if b == nil || !b.State.IsTerminal() {
		return nil
	}

	raw, err := json.Marshal(cachedBatch{
		ID:             b.ID,
		Intent:         b.Intent,
		Initiator:      b.Initiator,
		TotalCount:     b.TotalCount,
		SucceededCount: b.SucceededCount,
		FailedCount:    b.FailedCount,
		FailedUnitIDs:  b.FailedUnitIDs,
		State:          b.State,
		StartedAt:      b.StartedAt,
		CompletedAt:    b.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode batch status: %w", err)
	}

	if err := c.client.Set(ctx, statusKey(b.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write batch status: %w", err)
	}
	return nil
}

func statusKey(batchID string) string {
	return "docbatch:batch:status:" + batchID
}
