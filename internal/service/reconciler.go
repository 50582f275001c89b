package service

import (
	"context"
	"fmt"
	"time"

	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/queue"
	"github.com/handover/docbatch/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReconcileInterval   = time.Minute
	defaultReconcileStaleAfter = 30 * time.Minute
	defaultReconcileLimit      = 100
)

// BatchReconciler periodically republishes the pending units of batches whose ledger has
// stopped moving, so a lost message or crashed worker cannot leave a batch processing forever.
type BatchReconciler struct {
	batches    repository.BatchRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	staleAfter time.Duration
	limit      int
	now        func() time.Time
}

func NewBatchReconciler(
	batches repository.BatchRepository,
	publisher queue.Publisher,
	interval time.Duration,
	staleAfter time.Duration,
	limit int,
	logger *zap.Logger,
) (*BatchReconciler, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultReconcileStaleAfter
	}
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchReconciler{
		batches:    batches,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		limit:      limit,
		now:        time.Now,
	}, nil
}

func (r *BatchReconciler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *BatchReconciler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := r.reconcile(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("batch reconciler initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.reconcile(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("batch reconciler pass failed", zap.Error(err))
			}
		}
	}
}

func (r *BatchReconciler) reconcile(ctx context.Context) error {
	staleBefore := r.now().UTC().Add(-r.staleAfter)
	stale, err := r.batches.ListStale(ctx, staleBefore, r.limit)
	if err != nil {
		return fmt.Errorf("failed to list stale batches: %w", err)
	}

	for i := range stale {
		if err := r.republish(ctx, stale[i]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("failed to reconcile batch",
				zap.String("batchId", stale[i].ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (r *BatchReconciler) republish(ctx context.Context, batch domain.Batch) error {
	unitIDs, err := r.batches.ListPendingUnitIDs(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("failed to list pending units: %w", err)
	}

	queueName := queue.QueueName(batch.Intent)
	published := 0
	for _, unitID := range unitIDs {
		msg := queue.NewUnitTaskMessage(domain.UnitTask{
			BatchID:   batch.ID,
			UnitID:    unitID,
			Intent:    batch.Intent,
			Initiator: batch.Initiator,
		})
		if err := r.publisher.Publish(ctx, queueName, msg); err != nil {
			r.logger.Error("failed to republish unit task",
				zap.String("batchId", batch.ID),
				zap.String("unitId", unitID),
				zap.String("queue", queueName),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	r.metrics.AddUnitsRepublished(published)

	// Touching the batch restarts its staleness window so the next pass does not republish
	// the same units while they are still queued.
	if err := r.batches.Touch(ctx, batch.ID); err != nil {
		return fmt.Errorf("failed to touch batch: %w", err)
	}

	if published > 0 {
		r.logger.Info("republished pending units of stale batch",
			zap.String("batchId", batch.ID),
			zap.Int("republished", published),
			zap.Int("pending", len(unitIDs)),
		)
	}
	return nil
}
