package service

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/provider"
	"github.com/handover/docbatch/internal/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func completedBatch() *domain.Batch {
	completedAt := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	return &domain.Batch{
		ID:             "b1",
		Intent:         domain.IntentGenerateSOA,
		Initiator:      "admin-1",
		TotalCount:     5,
		SucceededCount: 4,
		FailedCount:    1,
		FailedUnitIDs:  []string{"u3"},
		State:          domain.BatchStateCompleted,
		StartedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt:    &completedAt,
	}
}

func scrapeMetrics(t *testing.T, metrics *observability.Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestProgressAggregatorRecordsFailureReason(t *testing.T) {
	t.Parallel()

	var got repository.OutcomeParams
	batches := &fakeBatchRepo{
		recordOutcomeFn: func(ctx context.Context, params repository.OutcomeParams) (*domain.OutcomeResult, error) {
			got = params
			return &domain.OutcomeResult{Batch: &domain.Batch{ID: params.BatchID, State: domain.BatchStateProcessing}}, nil
		},
	}
	aggregator, err := NewProgressAggregator(batches, nil, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewProgressAggregator() error = %v", err)
	}

	_, err = aggregator.Record(context.Background(), domain.TaskResult{
		Task:     domain.UnitTask{BatchID: "b1", UnitID: "u3", Intent: domain.IntentGenerateSOA},
		Err:      domain.NewNoRecipients("u3"),
		Attempts: 1,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if got.Success || got.Reason != "NON_TRANSIENT_NO_RECIPIENTS" || got.Attempts != 1 {
		t.Fatalf("params = %+v", got)
	}
}

func TestProgressAggregatorCompletionSideEffects(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		recordOutcomeFn: func(ctx context.Context, params repository.OutcomeParams) (*domain.OutcomeResult, error) {
			if !params.Success || params.Reason != "" {
				t.Fatalf("params = %+v, want success without reason", params)
			}
			return &domain.OutcomeResult{Batch: completedBatch(), Completed: true}, nil
		},
	}

	var cached *domain.Batch
	cache := &fakeStatusCache{
		setFn: func(ctx context.Context, batch *domain.Batch) error {
			cached = batch
			return nil
		},
	}
	var summary provider.CompletionSummary
	notifier := &fakeCompletionNotifier{
		notifyFn: func(ctx context.Context, s provider.CompletionSummary) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Fatal("completion notification should have a deadline")
			}
			summary = s
			return nil
		},
	}

	core, logs := observer.New(zap.InfoLevel)
	aggregator, err := NewProgressAggregator(batches, cache, notifier, zap.New(core))
	if err != nil {
		t.Fatalf("NewProgressAggregator() error = %v", err)
	}
	metrics := observability.NewMetrics()
	aggregator.SetMetrics(metrics)

	result, err := aggregator.Record(context.Background(), domain.TaskResult{
		Task:     domain.UnitTask{BatchID: "b1", UnitID: "u5", Intent: domain.IntentGenerateSOA},
		Attempts: 2,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !result.Completed {
		t.Fatal("result should be completed")
	}

	if cached == nil || cached.ID != "b1" {
		t.Fatalf("cached = %+v, want b1", cached)
	}
	if summary.BatchID != "b1" || summary.Succeeded != 4 || summary.Failed != 1 || len(summary.FailedUnitIDs) != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if logs.FilterMessage("batch completed").Len() != 1 {
		t.Fatalf("expected one batch completed log, got %d", logs.FilterMessage("batch completed").Len())
	}

	body := scrapeMetrics(t, metrics)
	if !strings.Contains(body, `docbatch_batches_completed_total{intent="generate_soa"} 1`) {
		t.Fatalf("batches_completed_total missing from:\n%s", body)
	}
	if !strings.Contains(body, `docbatch_unit_tasks_total{intent="generate_soa",outcome="succeeded"} 1`) {
		t.Fatalf("unit_tasks_total missing from:\n%s", body)
	}
}

func TestProgressAggregatorDuplicateSkipsSideEffects(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		recordOutcomeFn: func(ctx context.Context, params repository.OutcomeParams) (*domain.OutcomeResult, error) {
			return &domain.OutcomeResult{Batch: completedBatch(), Duplicate: true}, nil
		},
	}
	notified := false
	notifier := &fakeCompletionNotifier{
		notifyFn: func(ctx context.Context, s provider.CompletionSummary) error {
			notified = true
			return nil
		},
	}
	aggregator, err := NewProgressAggregator(batches, nil, notifier, nil)
	if err != nil {
		t.Fatalf("NewProgressAggregator() error = %v", err)
	}

	result, err := aggregator.Record(context.Background(), domain.TaskResult{
		Task: domain.UnitTask{BatchID: "b1", UnitID: "u1", Intent: domain.IntentGenerateSOA},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !result.Duplicate || notified {
		t.Fatalf("duplicate = %v, notified = %v", result.Duplicate, notified)
	}
}

func TestProgressAggregatorNotifierFailureIsIgnored(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		recordOutcomeFn: func(ctx context.Context, params repository.OutcomeParams) (*domain.OutcomeResult, error) {
			return &domain.OutcomeResult{Batch: completedBatch(), Completed: true}, nil
		},
	}
	cache := &fakeStatusCache{
		setFn: func(ctx context.Context, batch *domain.Batch) error {
			return errors.New("redis down")
		},
	}
	notifier := &fakeCompletionNotifier{
		notifyFn: func(ctx context.Context, s provider.CompletionSummary) error {
			return errors.New("webhook down")
		},
	}

	core, logs := observer.New(zap.WarnLevel)
	aggregator, err := NewProgressAggregator(batches, cache, notifier, zap.New(core))
	if err != nil {
		t.Fatalf("NewProgressAggregator() error = %v", err)
	}

	if _, err := aggregator.Record(context.Background(), domain.TaskResult{
		Task: domain.UnitTask{BatchID: "b1", UnitID: "u1", Intent: domain.IntentGenerateSOA},
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if logs.FilterMessage("failed to notify batch completion").Len() != 1 {
		t.Fatal("expected notifier failure to be logged")
	}
	if logs.FilterMessage("failed to cache completed batch").Len() != 1 {
		t.Fatal("expected cache failure to be logged")
	}
}

func TestProgressAggregatorLedgerError(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		recordOutcomeFn: func(ctx context.Context, params repository.OutcomeParams) (*domain.OutcomeResult, error) {
			return nil, domain.ErrNotFound
		},
	}
	aggregator, err := NewProgressAggregator(batches, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewProgressAggregator() error = %v", err)
	}

	_, err = aggregator.Record(context.Background(), domain.TaskResult{
		Task: domain.UnitTask{BatchID: "b1", UnitID: "u1", Intent: domain.IntentGenerateSOA},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	if _, err := NewProgressAggregator(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error when batch repository is nil")
	}
}

func TestProgressAggregatorItemPending(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		item        *domain.BatchItem
		getErr      error
		wantPending bool
		wantErr     error
	}{
		{name: "pending", item: &domain.BatchItem{Outcome: domain.ItemOutcomePending}, wantPending: true},
		{name: "succeeded", item: &domain.BatchItem{Outcome: domain.ItemOutcomeSucceeded}},
		{name: "failed", item: &domain.BatchItem{Outcome: domain.ItemOutcomeFailed}},
		{name: "unknown unit", getErr: domain.ErrNotFound, wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			batches := &fakeBatchRepo{
				getItemFn: func(ctx context.Context, batchID string, unitID string) (*domain.BatchItem, error) {
					if batchID != "b1" || unitID != "u1" {
						t.Errorf("GetItem(%q, %q), want (b1, u1)", batchID, unitID)
					}
					return tt.item, tt.getErr
				},
			}
			aggregator, err := NewProgressAggregator(batches, nil, nil, nil)
			if err != nil {
				t.Fatalf("NewProgressAggregator() error = %v", err)
			}

			pending, err := aggregator.ItemPending(context.Background(), "b1", "u1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ItemPending() error = %v, want %v", err, tt.wantErr)
			}
			if pending != tt.wantPending {
				t.Fatalf("ItemPending() = %v, want %v", pending, tt.wantPending)
			}
		})
	}
}
