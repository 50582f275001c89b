package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/queue"
	"github.com/handover/docbatch/internal/repository"
	"go.uber.org/zap"
)

const defaultMaxBatchSize = 1000

// BatchRequest asks for one intent to be applied to a set of units.
type BatchRequest struct {
	UnitIDs       []string
	Intent        domain.Intent
	Initiator     string
	CorrelationID string
}

// BatchService creates batches, fans their units out to the task queues and answers status
// queries.
type BatchService struct {
	batches      repository.BatchRepository
	units        repository.UnitRepository
	publisher    queue.Publisher
	recorder     OutcomeRecorder
	cache        StatusCache
	logger       *zap.Logger
	metrics      *observability.Metrics
	maxBatchSize int
	now          func() time.Time
}

// NewBatchService builds the service. cache is optional.
func NewBatchService(
	batches repository.BatchRepository,
	units repository.UnitRepository,
	publisher queue.Publisher,
	recorder OutcomeRecorder,
	cache StatusCache,
	maxBatchSize int,
	logger *zap.Logger,
) (*BatchService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("outcome recorder is required")
	}
	if maxBatchSize < 1 {
		maxBatchSize = defaultMaxBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		batches:      batches,
		units:        units,
		publisher:    publisher,
		recorder:     recorder,
		cache:        cache,
		logger:       logger,
		maxBatchSize: maxBatchSize,
		now:          time.Now,
	}, nil
}

func (s *BatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SubmitBatch records the batch with its total fixed, then publishes one task per unit. It
// returns as soon as the tasks are queued.
func (s *BatchService) SubmitBatch(ctx context.Context, req BatchRequest) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !req.Intent.IsValid() {
		return nil, fmt.Errorf("%w: invalid intent %q", domain.ErrValidation, req.Intent)
	}
	initiator := strings.TrimSpace(req.Initiator)
	if initiator == "" {
		return nil, fmt.Errorf("%w: initiator is required", domain.ErrValidation)
	}

	unitIDs := normalizeUnitIDs(req.UnitIDs)
	if len(unitIDs) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if len(unitIDs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: batch size exceeds %d", domain.ErrValidation, s.maxBatchSize)
	}

	batch := &domain.Batch{
		ID:            uuid.NewString(),
		Intent:        req.Intent,
		Initiator:     initiator,
		TotalCount:    len(unitIDs),
		FailedUnitIDs: []string{},
		State:         domain.BatchStateProcessing,
		StartedAt:     s.now().UTC(),
	}
	if err := s.batches.Create(ctx, batch, unitIDs); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	s.metrics.IncBatchSubmitted(batch.Intent.String())

	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("batchId", batch.ID),
		zap.String("intent", batch.Intent.String()),
	)
	logger.Info("batch submitted",
		zap.Int("total", batch.TotalCount),
		zap.String("initiator", initiator),
	)

	queueName := queue.QueueName(batch.Intent)
	publishFailures := 0
	for _, unitID := range unitIDs {
		task := domain.UnitTask{
			BatchID:       batch.ID,
			UnitID:        unitID,
			Intent:        batch.Intent,
			Initiator:     initiator,
			CorrelationID: req.CorrelationID,
		}

		if err := s.publisher.Publish(ctx, queueName, queue.NewUnitTaskMessage(task)); err != nil {
			publishFailures++
			logger.Error("failed to publish unit task",
				zap.String("unitId", unitID),
				zap.String("queue", queueName),
				zap.Error(err),
			)

			// The unit will never run, so it is counted as failed to let the batch converge.
			result := domain.TaskResult{Task: task, Err: fmt.Errorf("%w: %v", domain.ErrEnqueueFailed, err)}
			if _, recordErr := s.recorder.Record(context.WithoutCancel(ctx), result); recordErr != nil {
				logger.Error("failed to record publish failure",
					zap.String("unitId", unitID),
					zap.Error(recordErr),
				)
			}
		}
	}

	if publishFailures == 0 {
		return batch, nil
	}

	snapshot, err := s.batches.GetByID(ctx, batch.ID)
	if err != nil {
		return batch, nil
	}
	return snapshot, nil
}

// SubmitForProperty submits a batch covering every unit of the property that has at least
// one owner with an email address.
func (s *BatchService) SubmitForProperty(
	ctx context.Context,
	propertyID string,
	intent domain.Intent,
	initiator string,
	correlationID string,
) (*domain.Batch, error) {
	if s.units == nil {
		return nil, fmt.Errorf("unit repository is not configured")
	}
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return nil, fmt.Errorf("%w: property id is required", domain.ErrValidation)
	}

	unitIDs, err := s.units.ListUnitIDsWithRecipients(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible units: %w", err)
	}

	return s.SubmitBatch(ctx, BatchRequest{
		UnitIDs:       unitIDs,
		Intent:        intent,
		Initiator:     initiator,
		CorrelationID: correlationID,
	})
}

// GetBatch returns the current snapshot. Terminal snapshots are served from the cache.
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, batchID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("batch status cache read failed",
				zap.String("batchId", batchID),
				zap.Error(err),
			)
		}
	}

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && batch.State.IsTerminal() {
		if err := s.cache.Set(ctx, batch); err != nil {
			s.logger.Warn("batch status cache write failed",
				zap.String("batchId", batchID),
				zap.Error(err),
			)
		}
	}

	return batch, nil
}

func (s *BatchService) ListItems(ctx context.Context, batchID string) ([]domain.BatchItem, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.batches.ListItems(ctx, batchID)
}

func normalizeUnitIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	unitIDs := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unitIDs = append(unitIDs, id)
	}
	return unitIDs
}
