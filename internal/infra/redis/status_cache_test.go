package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/handover/docbatch/internal/domain"
)

func TestBatchStatusCacheStoresTerminalSnapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache, err := NewBatchStatusCache(newTestRedisClient(t), time.Minute)
	if err != nil {
		t.Fatalf("NewBatchStatusCache() error = %v", err)
	}

	if _, err := cache.Get(ctx, "b1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() on miss error = %v, want ErrNotFound", err)
	}

	processing := &domain.Batch{ID: "b1", Intent: domain.IntentGenerateSOA, State: domain.BatchStateProcessing}
	if err := cache.Set(ctx, processing); err != nil {
		t.Fatalf("Set(processing) error = %v", err)
	}
	if _, err := cache.Get(ctx, "b1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("processing batch should not be cached, error = %v", err)
	}

	completedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := &domain.Batch{
		ID:             "b1",
		Intent:         domain.IntentGenerateSOA,
		Initiator:      "admin-1",
		TotalCount:     3,
		SucceededCount: 2,
		FailedCount:    1,
		FailedUnitIDs:  []string{"u3"},
		State:          domain.BatchStateCompleted,
		CompletedAt:    &completedAt,
	}
	if err := cache.Set(ctx, completed); err != nil {
		t.Fatalf("Set(completed) error = %v", err)
	}

	got, err := cache.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != domain.BatchStateCompleted || got.SucceededCount != 2 || got.FailedCount != 1 {
		t.Fatalf("cached batch = %+v", got)
	}
	if len(got.FailedUnitIDs) != 1 || got.FailedUnitIDs[0] != "u3" {
		t.Fatalf("failedUnitIds = %v, want [u3]", got.FailedUnitIDs)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completedAt) {
		t.Fatalf("completedAt = %v, want %v", got.CompletedAt, completedAt)
	}
}

func TestNewBatchStatusCacheRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewBatchStatusCache(nil, time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
}
