package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/render"
	"github.com/handover/docbatch/internal/repository"
	"github.com/handover/docbatch/internal/storage"
	"go.uber.org/zap"
)

// UnitLocker serializes tasks touching the same unit across workers.
type UnitLocker interface {
	Lock(ctx context.Context, unitID string) (release func(context.Context) error, err error)
}

// Notifier delivers a unit notification to its owners.
type Notifier interface {
	Send(ctx context.Context, req SendRequest) (*DeliveryResult, error)
}

// UnitTaskExecutor performs the work of one unit task. It never touches batch counters.
type UnitTaskExecutor struct {
	units     repository.UnitRepository
	artifacts repository.ArtifactRepository
	remarks   repository.RemarkRepository
	blobs     storage.BlobStorage
	renderer  render.Renderer
	notifier  Notifier
	locker    UnitLocker
	logger    *zap.Logger
	now       func() time.Time
}

// NewUnitTaskExecutor builds an executor. remarks, notifier and locker are optional; without a
// notifier the send intents fail with a missing-source error.
func NewUnitTaskExecutor(
	units repository.UnitRepository,
	artifacts repository.ArtifactRepository,
	remarks repository.RemarkRepository,
	blobs storage.BlobStorage,
	renderer render.Renderer,
	notifier Notifier,
	locker UnitLocker,
	logger *zap.Logger,
) (*UnitTaskExecutor, error) {
	if units == nil {
		return nil, fmt.Errorf("unit repository is required")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact repository is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob storage is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UnitTaskExecutor{
		units:     units,
		artifacts: artifacts,
		remarks:   remarks,
		blobs:     blobs,
		renderer:  renderer,
		notifier:  notifier,
		locker:    locker,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Execute runs one attempt of task. Returned errors are classified with domain.TaskError
// where the cause is known.
func (e *UnitTaskExecutor) Execute(ctx context.Context, task domain.UnitTask) error {
	logger := observability.WithUnitLogger(e.logger, ctx, task.BatchID, task.UnitID)

	if e.locker != nil {
		release, err := e.locker.Lock(ctx, task.UnitID)
		if err != nil {
			if errors.Is(err, domain.ErrUnitBusy) {
				return err
			}
			return fmt.Errorf("failed to acquire unit lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release unit lock", zap.Error(err))
			}
		}()
	}

	details, err := e.units.GetDetails(ctx, task.UnitID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewMissingSource(fmt.Sprintf("unit %s not found", task.UnitID))
		}
		return fmt.Errorf("failed to load unit details: %w", err)
	}
	if len(details.Recipients()) == 0 {
		return domain.NewNoRecipients(task.UnitID)
	}

	if docType, ok := task.Intent.GeneratedDocument(); ok {
		if err := e.generate(ctx, logger, task, details, docType); err != nil {
			return err
		}
	}

	if task.Intent.Notifies() {
		return e.notify(ctx, task, details)
	}
	return nil
}

// generate replaces the unit's current artifact of docType: the old blob and record are
// evicted before the new document is rendered and stored.
func (e *UnitTaskExecutor) generate(
	ctx context.Context,
	logger *zap.Logger,
	task domain.UnitTask,
	details *domain.UnitDetails,
	docType domain.DocumentType,
) error {
	if err := e.evict(ctx, task.UnitID, docType); err != nil {
		return err
	}

	generatedAt := e.now().UTC()
	data := render.NewDocumentData(details, docType, task.Initiator, generatedAt)
	pdf, err := e.renderer.Render(ctx, render.TemplateName(docType), data)
	if err != nil {
		return domain.NewRenderFailure(fmt.Sprintf("render %s", docType.Slug()), err)
	}

	fileName := domain.ArtifactFileName(docType, details.Unit.UnitNumber)
	key := domain.ArtifactPath(docType, details.Property.Name, details.Unit.UnitNumber, fileName)
	if err := e.blobs.Put(ctx, key, pdf, pdfContentType); err != nil {
		return domain.NewStorageFailure("store document", err)
	}

	artifact := &domain.UnitArtifact{
		ID:           uuid.NewString(),
		UnitID:       task.UnitID,
		DocumentType: docType,
		StoragePath:  key,
		FileName:     fileName,
		SizeBytes:    int64(len(pdf)),
		GeneratedBy:  task.Initiator,
		GeneratedAt:  generatedAt,
	}
	if err := e.artifacts.Create(ctx, artifact); err != nil {
		return domain.NewStorageFailure("create artifact record", err)
	}

	logger.Info("unit document generated",
		zap.String("documentType", docType.String()),
		zap.String("storagePath", key),
		zap.Int64("sizeBytes", artifact.SizeBytes),
	)

	e.appendRemark(ctx, logger, domain.TimelineRemark{
		UnitID:   task.UnitID,
		Event:    fmt.Sprintf("%s generated", render.DocumentTitle(docType)),
		Category: domain.RemarkCategoryDocument,
		AdminID:  task.Initiator,
	})
	return nil
}

func (e *UnitTaskExecutor) evict(ctx context.Context, unitID string, docType domain.DocumentType) error {
	current, err := e.artifacts.GetCurrent(ctx, unitID, docType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return domain.NewStorageFailure("load current artifact", err)
	}

	exists, err := e.blobs.Exists(ctx, current.StoragePath)
	if err != nil {
		return domain.NewStorageFailure("check previous document", err)
	}
	if exists {
		if err := e.blobs.Delete(ctx, current.StoragePath); err != nil {
			return domain.NewStorageFailure("delete previous document", err)
		}
	}

	if err := e.artifacts.Delete(ctx, current.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.NewStorageFailure("delete previous artifact record", err)
	}
	return nil
}

func (e *UnitTaskExecutor) notify(ctx context.Context, task domain.UnitTask, details *domain.UnitDetails) error {
	if e.notifier == nil {
		return domain.NewMissingSource("mail delivery is not configured")
	}

	artifacts := make([]domain.UnitArtifact, 0, len(task.Intent.AttachedDocuments()))
	for _, docType := range task.Intent.AttachedDocuments() {
		artifact, err := e.artifacts.GetCurrent(ctx, task.UnitID, docType)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return domain.NewStorageFailure("load artifact for email", err)
		}
		artifacts = append(artifacts, *artifact)
	}
	if len(artifacts) == 0 {
		return domain.NewMissingSource(fmt.Sprintf("unit %s has no generated documents", task.UnitID))
	}

	_, err := e.notifier.Send(ctx, SendRequest{
		BatchID:   task.BatchID,
		Intent:    task.Intent,
		Initiator: task.Initiator,
		Details:   details,
		Artifacts: artifacts,
	})
	return err
}

func (e *UnitTaskExecutor) appendRemark(ctx context.Context, logger *zap.Logger, remark domain.TimelineRemark) {
	if e.remarks == nil {
		return
	}
	remark.ID = uuid.NewString()
	remark.OccurredAt = e.now().UTC()
	if err := e.remarks.Create(context.WithoutCancel(ctx), &remark); err != nil {
		logger.Warn("failed to append timeline remark", zap.Error(err))
	}
}
