package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/handover/docbatch/internal/domain"
)

type UnitService interface {
	ListArtifacts(ctx context.Context, unitID string) ([]domain.UnitArtifact, error)
	ListDeliveries(ctx context.Context, unitID string) ([]domain.DeliveryLog, error)
	ListRemarks(ctx context.Context, unitID string) ([]domain.TimelineRemark, error)
	PurgeUnit(ctx context.Context, unitID string) (int, error)
}

type UnitHandler struct {
	service UnitService
}

func NewUnitHandler(service UnitService) (*UnitHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("unit service is required")
	}
	return &UnitHandler{service: service}, nil
}

func RegisterUnitRoutes(router fiber.Router, service UnitService) error {
	h, err := NewUnitHandler(service)
	if err != nil {
		return err
	}

	units := router.Group("/v1/units/:unitId")
	units.Get("/artifacts", h.ListArtifacts)
	units.Delete("/artifacts", h.PurgeArtifacts)
	units.Get("/deliveries", h.ListDeliveries)
	units.Get("/remarks", h.ListRemarks)

	return nil
}

type artifactResponse struct {
	ID           string    `json:"id"`
	DocumentType string    `json:"documentType"`
	StoragePath  string    `json:"storagePath"`
	FileName     string    `json:"fileName"`
	SizeBytes    int64     `json:"sizeBytes"`
	GeneratedBy  string    `json:"generatedBy"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

type deliveryResponse struct {
	ID            string    `json:"id"`
	BatchID       *string   `json:"batchId,omitempty"`
	Recipient     string    `json:"recipient"`
	RecipientName string    `json:"recipientName,omitempty"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	Error         *string   `json:"error,omitempty"`
	AttemptedAt   time.Time `json:"attemptedAt"`
}

type remarkResponse struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	Event      string    `json:"event"`
	Category   string    `json:"category"`
	AdminID    string    `json:"adminId,omitempty"`
}

type unitListResponse[T any] struct {
	UnitID string `json:"unitId"`
	Data   []T    `json:"data"`
}

func (h *UnitHandler) ListArtifacts(c *fiber.Ctx) error {
	unitID := strings.TrimSpace(c.Params("unitId"))
	artifacts, err := h.service.ListArtifacts(c.UserContext(), unitID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]artifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		data = append(data, artifactResponse{
			ID:           a.ID,
			DocumentType: a.DocumentType.String(),
			StoragePath:  a.StoragePath,
			FileName:     a.FileName,
			SizeBytes:    a.SizeBytes,
			GeneratedBy:  a.GeneratedBy,
			GeneratedAt:  a.GeneratedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(unitListResponse[artifactResponse]{UnitID: unitID, Data: data})
}

func (h *UnitHandler) PurgeArtifacts(c *fiber.Ctx) error {
	unitID := strings.TrimSpace(c.Params("unitId"))
	removed, err := h.service.PurgeUnit(c.UserContext(), unitID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"unitId":  unitID,
		"removed": removed,
	})
}

func (h *UnitHandler) ListDeliveries(c *fiber.Ctx) error {
	unitID := strings.TrimSpace(c.Params("unitId"))
	logs, err := h.service.ListDeliveries(c.UserContext(), unitID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]deliveryResponse, 0, len(logs))
	for _, l := range logs {
		data = append(data, deliveryResponse{
			ID:            l.ID,
			BatchID:       l.BatchID,
			Recipient:     l.Recipient,
			RecipientName: l.RecipientName,
			Subject:       l.Subject,
			Status:        wireValue(l.Status),
			Error:         l.Error,
			AttemptedAt:   l.AttemptedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(unitListResponse[deliveryResponse]{UnitID: unitID, Data: data})
}

func (h *UnitHandler) ListRemarks(c *fiber.Ctx) error {
	unitID := strings.TrimSpace(c.Params("unitId"))
	remarks, err := h.service.ListRemarks(c.UserContext(), unitID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]remarkResponse, 0, len(remarks))
	for _, r := range remarks {
		data = append(data, remarkResponse{
			ID:         r.ID,
			OccurredAt: r.OccurredAt,
			Event:      r.Event,
			Category:   r.Category.String(),
			AdminID:    r.AdminID,
		})
	}

	return c.Status(fiber.StatusOK).JSON(unitListResponse[remarkResponse]{UnitID: unitID, Data: data})
}
