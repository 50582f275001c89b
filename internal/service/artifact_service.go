package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/repository"
	"github.com/handover/docbatch/internal/storage"
	"go.uber.org/zap"
)

// ArtifactService serves the per-unit documents and audit trail.
type ArtifactService struct {
	artifacts  repository.ArtifactRepository
	deliveries repository.DeliveryRepository
	remarks    repository.RemarkRepository
	blobs      storage.BlobStorage
	locker     UnitLocker
	logger     *zap.Logger
}

func NewArtifactService(
	artifacts repository.ArtifactRepository,
	deliveries repository.DeliveryRepository,
	remarks repository.RemarkRepository,
	blobs storage.BlobStorage,
	locker UnitLocker,
	logger *zap.Logger,
) (*ArtifactService, error) {
	if artifacts == nil {
		return nil, fmt.Errorf("artifact repository is required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if remarks == nil {
		return nil, fmt.Errorf("remark repository is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ArtifactService{
		artifacts:  artifacts,
		deliveries: deliveries,
		remarks:    remarks,
		blobs:      blobs,
		locker:     locker,
		logger:     logger,
	}, nil
}

func (s *ArtifactService) ListArtifacts(ctx context.Context, unitID string) ([]domain.UnitArtifact, error) {
	unitID, err := requireUnitID(unitID)
	if err != nil {
		return nil, err
	}
	return s.artifacts.ListByUnit(ctx, unitID)
}

func (s *ArtifactService) ListDeliveries(ctx context.Context, unitID string) ([]domain.DeliveryLog, error) {
	unitID, err := requireUnitID(unitID)
	if err != nil {
		return nil, err
	}
	return s.deliveries.ListByUnit(ctx, unitID)
}

func (s *ArtifactService) ListRemarks(ctx context.Context, unitID string) ([]domain.TimelineRemark, error) {
	unitID, err := requireUnitID(unitID)
	if err != nil {
		return nil, err
	}
	return s.remarks.ListByUnit(ctx, unitID)
}

// PurgeUnit removes every artifact of the unit, blob first, then record. It returns the
// number of artifacts removed.
func (s *ArtifactService) PurgeUnit(ctx context.Context, unitID string) (int, error) {
	unitID, err := requireUnitID(unitID)
	if err != nil {
		return 0, err
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, unitID)
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release unit lock", zap.String("unitId", unitID), zap.Error(err))
			}
		}()
	}

	artifacts, err := s.artifacts.ListByUnit(ctx, unitID)
	if err != nil {
		return 0, fmt.Errorf("failed to list artifacts: %w", err)
	}

	removed := 0
	for _, artifact := range artifacts {
		if err := s.blobs.Delete(ctx, artifact.StoragePath); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			return removed, fmt.Errorf("failed to delete document %s: %w", artifact.StoragePath, err)
		}
		if err := s.artifacts.Delete(ctx, artifact.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return removed, fmt.Errorf("failed to delete artifact %s: %w", artifact.ID, err)
		}
		removed++
	}

	s.logger.Info("unit artifacts purged",
		zap.String("unitId", unitID),
		zap.Int("removed", removed),
	)
	return removed, nil
}

func requireUnitID(unitID string) (string, error) {
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return "", fmt.Errorf("%w: unit id is required", domain.ErrValidation)
	}
	return unitID, nil
}
