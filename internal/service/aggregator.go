package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/provider"
	"github.com/handover/docbatch/internal/repository"
	"go.uber.org/zap"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeDuplicate = "duplicate"

	completionNotifyTimeout = 10 * time.Second
)

// StatusCache keeps terminal batch snapshots close to the status endpoint.
type StatusCache interface {
	Get(ctx context.Context, batchID string) (*domain.Batch, error)
	Set(ctx context.Context, batch *domain.Batch) error
}

// ProgressAggregator is the only writer of batch counters.
type ProgressAggregator struct {
	batches  repository.BatchRepository
	cache    StatusCache
	notifier provider.CompletionNotifier
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewProgressAggregator builds an aggregator. cache and notifier are optional.
func NewProgressAggregator(
	batches repository.BatchRepository,
	cache StatusCache,
	notifier provider.CompletionNotifier,
	logger *zap.Logger,
) (*ProgressAggregator, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProgressAggregator{
		batches:  batches,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}, nil
}

func (a *ProgressAggregator) SetMetrics(metrics *observability.Metrics) {
	if a == nil {
		return
	}
	a.metrics = metrics
}

// Record applies the final outcome of one unit task to its batch.
func (a *ProgressAggregator) Record(ctx context.Context, result domain.TaskResult) (*domain.OutcomeResult, error) {
	task := result.Task
	logger := observability.WithUnitLogger(a.logger, ctx, task.BatchID, task.UnitID)

	params := repository.OutcomeParams{
		BatchID:  task.BatchID,
		UnitID:   task.UnitID,
		Success:  result.Succeeded(),
		Attempts: result.Attempts,
	}
	if !params.Success {
		params.Reason = domain.FailureReason(result.Err)
	}

	outcome, err := a.batches.RecordOutcome(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to record unit outcome: %w", err)
	}

	intent := task.Intent.String()
	switch {
	case outcome.Duplicate:
		logger.Info("unit outcome already recorded, ignoring")
		a.metrics.IncUnitTask(intent, outcomeDuplicate)
		return outcome, nil
	case params.Success:
		a.metrics.IncUnitTask(intent, outcomeSucceeded)
	default:
		logger.Warn("unit task failed",
			zap.String("reason", params.Reason),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.Err),
		)
		a.metrics.IncUnitTask(intent, outcomeFailed)
	}

	if outcome.Completed {
		a.onCompleted(ctx, outcome.Batch)
	}

	return outcome, nil
}

// ItemPending reports whether the unit still has no recorded outcome in its batch. It returns
// domain.ErrNotFound when the unit is not part of the batch.
func (a *ProgressAggregator) ItemPending(ctx context.Context, batchID string, unitID string) (bool, error) {
	item, err := a.batches.GetItem(ctx, batchID, unitID)
	if err != nil {
		return false, err
	}
	return item.Outcome == domain.ItemOutcomePending, nil
}

func (a *ProgressAggregator) onCompleted(ctx context.Context, batch *domain.Batch) {
	logger := observability.WithContextLogger(a.logger, ctx)
	logger.Info("batch completed",
		zap.String("batchId", batch.ID),
		zap.String("intent", batch.Intent.String()),
		zap.Int("total", batch.TotalCount),
		zap.Int("succeeded", batch.SucceededCount),
		zap.Int("failed", batch.FailedCount),
		zap.String("failedUnitIds", strings.Join(batch.FailedUnitIDs, ",")),
	)
	a.metrics.IncBatchCompleted(batch.Intent.String())

	if a.cache != nil {
		if err := a.cache.Set(ctx, batch); err != nil {
			logger.Warn("failed to cache completed batch",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
		}
	}

	if a.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completionNotifyTimeout)
	defer cancel()

	if err := a.notifier.NotifyCompletion(notifyCtx, completionSummary(batch)); err != nil {
		logger.Warn("failed to notify batch completion",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}
}

func completionSummary(batch *domain.Batch) provider.CompletionSummary {
	failed := make([]string, len(batch.FailedUnitIDs))
	copy(failed, batch.FailedUnitIDs)

	return provider.CompletionSummary{
		BatchID:       batch.ID,
		Intent:        batch.Intent.String(),
		Initiator:     batch.Initiator,
		Total:         batch.TotalCount,
		Succeeded:     batch.SucceededCount,
		Failed:        batch.FailedCount,
		FailedUnitIDs: failed,
		StartedAt:     batch.StartedAt,
		CompletedAt:   batch.CompletedAt,
	}
}
