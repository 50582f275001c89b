package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/observability"
	"github.com/handover/docbatch/internal/service"
)

const headerAdminID = "X-Admin-ID"

type BatchService interface {
	SubmitBatch(ctx context.Context, req service.BatchRequest) (*domain.Batch, error)
	SubmitForProperty(ctx context.Context, propertyID string, intent domain.Intent, initiator string, correlationID string) (*domain.Batch, error)
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	ListItems(ctx context.Context, batchID string) ([]domain.BatchItem, error)
}

type BatchHandler struct {
	service BatchService
}

func NewBatchHandler(service BatchService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.SubmitBatch)
	v1.Get("/batches/:batchId", h.GetBatch)
	v1.Get("/batches/:batchId/items", h.ListItems)
	v1.Post("/properties/:propertyId/batches", h.SubmitForProperty)

	return nil
}

type submitBatchRequest struct {
	UnitIDs       []string `json:"unitIds"`
	Intent        string   `json:"intent"`
	Initiator     string   `json:"initiator"`
	CorrelationID string   `json:"correlationId"`
}

type submitPropertyBatchRequest struct {
	Intent        string `json:"intent"`
	Initiator     string `json:"initiator"`
	CorrelationID string `json:"correlationId"`
}

type batchResponse struct {
	BatchID       string     `json:"batchId"`
	Intent        string     `json:"intent"`
	Initiator     string     `json:"initiator"`
	Total         int        `json:"total"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	State         string     `json:"state"`
	FailedUnitIDs []string   `json:"failedUnitIds"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

type batchItemResponse struct {
	UnitID    string    `json:"unitId"`
	Outcome   string    `json:"outcome"`
	Reason    *string   `json:"reason,omitempty"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type listBatchItemsResponse struct {
	BatchID string              `json:"batchId"`
	Data    []batchItemResponse `json:"data"`
}

func (h *BatchHandler) SubmitBatch(c *fiber.Ctx) error {
	var req submitBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	intent, err := domain.ParseIntentFromString(req.Intent)
	if err != nil {
		return toHTTPError(err)
	}

	correlationID := firstNonEmpty(req.CorrelationID, requestCorrelationID(c))
	ctx := observability.WithCorrelationID(c.UserContext(), correlationID)

	batch, err := h.service.SubmitBatch(ctx, service.BatchRequest{
		UnitIDs:       req.UnitIDs,
		Intent:        intent,
		Initiator:     firstNonEmpty(req.Initiator, c.Get(headerAdminID)),
		CorrelationID: correlationID,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) SubmitForProperty(c *fiber.Ctx) error {
	var req submitPropertyBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	intent, err := domain.ParseIntentFromString(req.Intent)
	if err != nil {
		return toHTTPError(err)
	}

	correlationID := firstNonEmpty(req.CorrelationID, requestCorrelationID(c))
	ctx := observability.WithCorrelationID(c.UserContext(), correlationID)

	batch, err := h.service.SubmitForProperty(
		ctx,
		c.Params("propertyId"),
		intent,
		firstNonEmpty(req.Initiator, c.Get(headerAdminID)),
		correlationID,
	)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	batch, err := h.service.GetBatch(c.UserContext(), strings.TrimSpace(c.Params("batchId")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) ListItems(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	items, err := h.service.ListItems(c.UserContext(), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchItemResponse, 0, len(items))
	for _, item := range items {
		data = append(data, batchItemResponse{
			UnitID:    item.UnitID,
			Outcome:   wireValue(item.Outcome),
			Reason:    item.Reason,
			Attempts:  item.Attempts,
			UpdatedAt: item.UpdatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(listBatchItemsResponse{BatchID: batchID, Data: data})
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	failed := b.FailedUnitIDs
	if failed == nil {
		failed = []string{}
	}

	return batchResponse{
		BatchID:       b.ID,
		Intent:        b.Intent.String(),
		Initiator:     b.Initiator,
		Total:         b.TotalCount,
		Succeeded:     b.SucceededCount,
		Failed:        b.FailedCount,
		State:         wireValue(b.State),
		FailedUnitIDs: failed,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
	}
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// wireValue renders a state or outcome enum in the lowercase form clients see.
func wireValue(v fmt.Stringer) string {
	return strings.ToLower(v.String())
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrUnitBusy):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
