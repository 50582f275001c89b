package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/queue"
	"github.com/handover/docbatch/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	minWorkerConcurrency = 1
	defaultDrainTimeout  = 30 * time.Second
)

// The ledger checks stop the retry loop before a unit is executed again.
var (
	errUnitAlreadyRecorded = &domain.TaskError{Kind: "UNIT_ALREADY_RECORDED", Message: "unit outcome already recorded"}
	errUnitNotInBatch      = &domain.TaskError{Kind: "UNIT_NOT_IN_BATCH", Message: "unit is not part of the batch"}
)

// TaskExecutor runs a single attempt of a unit task.
type TaskExecutor interface {
	Execute(ctx context.Context, task domain.UnitTask) error
}

// OutcomeRecorder applies a final task result to the ledger.
type OutcomeRecorder interface {
	Record(ctx context.Context, result domain.TaskResult) (*domain.OutcomeResult, error)
}

// TaskLedger is the worker's view of the batch ledger. ItemPending reports whether the unit
// still waits for an outcome in its batch.
type TaskLedger interface {
	OutcomeRecorder
	ItemPending(ctx context.Context, batchID string, unitID string) (bool, error)
}

// WorkerService runs concurrency consumers on every intent queue. A shared semaphore caps the
// tasks in flight across all queues at concurrency, so one batch can use every slot.
type WorkerService struct {
	consumer     queue.Consumer
	executor     TaskExecutor
	recorder     TaskLedger
	policy       retry.Policy
	logger       *zap.Logger
	metrics      *observability.Metrics
	concurrency  int
	slots        *semaphore.Weighted
	drainTimeout time.Duration
	now          func() time.Time
}

func NewWorkerService(
	consumer queue.Consumer,
	executor TaskExecutor,
	recorder TaskLedger,
	policy retry.Policy,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("task executor is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("outcome recorder is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:     consumer,
		executor:     executor,
		recorder:     recorder,
		policy:       policy,
		logger:       logger,
		concurrency:  concurrency,
		slots:        semaphore.NewWeighted(int64(concurrency)),
		drainTimeout: defaultDrainTimeout,
		now:          time.Now,
	}, nil
}

// SetDrainTimeout bounds how long in-flight tasks may keep running after shutdown starts.
func (s *WorkerService) SetDrainTimeout(timeout time.Duration) {
	if s == nil || timeout <= 0 {
		return
	}
	s.drainTimeout = timeout
}

// Start consumes the intent queues and processes unit tasks until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency*len(queueNames); i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.UnitTaskMessage) error {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("unit task interrupted: %w", err)
	}
	defer s.slots.Release(1)

	task := msg.Task()
	if task.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, task.CorrelationID)
	}
	logger := observability.WithUnitLogger(s.logger, ctx, task.BatchID, task.UnitID)

	taskCtx, stop := s.drainContext(ctx)
	defer stop()

	intent := task.Intent.String()
	s.metrics.IncWorkerInFlight(intent)
	defer s.metrics.DecWorkerInFlight(intent)

	policy := s.policy
	policy.OnRetry = func(attempt int, err error) {
		logger.Warn("unit task attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("reason", domain.FailureReason(err)),
			zap.Error(err),
		)
	}

	start := s.now()
	attempts, taskErr := policy.Run(taskCtx, func(attemptCtx context.Context) error {
		pending, err := s.recorder.ItemPending(attemptCtx, task.BatchID, task.UnitID)
		if errors.Is(err, domain.ErrNotFound) {
			return errUnitNotInBatch
		}
		if err != nil {
			return err
		}
		if !pending {
			return errUnitAlreadyRecorded
		}
		return s.executor.Execute(attemptCtx, task)
	})
	s.metrics.AddTaskAttempts(intent, attempts)
	s.metrics.ObserveTaskDuration(intent, s.now().Sub(start))

	// Past the drain window the task is not an outcome; the message goes back to the queue.
	if taskCtx.Err() != nil {
		return fmt.Errorf("unit task interrupted: %w", taskCtx.Err())
	}

	switch {
	case errors.Is(taskErr, errUnitAlreadyRecorded):
		logger.Info("unit outcome already recorded, skipping message")
		return nil
	case errors.Is(taskErr, errUnitNotInBatch):
		logger.Warn("batch item not found, dropping message")
		return nil
	}

	_, err := s.recorder.Record(taskCtx, domain.TaskResult{
		Task:     task,
		Err:      taskErr,
		Attempts: attempts,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("batch item not found, dropping message")
			return nil
		}
		if errors.Is(err, domain.ErrConflict) {
			logger.Warn("batch already completed, dropping message")
			return nil
		}
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	return nil
}

// drainContext detaches task work from ctx. Once ctx is cancelled the task keeps running for at
// most drainTimeout.
func (s *WorkerService) drainContext(ctx context.Context) (context.Context, context.CancelFunc) {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopDrain := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(s.drainTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-taskCtx.Done():
		}
	})

	return taskCtx, func() {
		stopDrain()
		cancel()
	}
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}
