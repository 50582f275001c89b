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
	"github.com/handover/docbatch/internal/provider"
	"github.com/handover/docbatch/internal/ratelimit"
	"github.com/handover/docbatch/internal/repository"
	"github.com/handover/docbatch/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMailFanout = 4
	pdfContentType    = "application/pdf"
)

// SendRequest is one unit's notification: every eligible owner gets the same documents.
type SendRequest struct {
	BatchID   string
	Intent    domain.Intent
	Initiator string
	Details   *domain.UnitDetails
	Artifacts []domain.UnitArtifact
}

// RecipientOutcome is the result of the send to one owner.
type RecipientOutcome struct {
	Recipient string
	Name      string
	Status    domain.DeliveryStatus
	Err       error
}

type DeliveryResult struct {
	Outcomes []RecipientOutcome
}

func (r *DeliveryResult) SentCount() int {
	if r == nil {
		return 0
	}
	sent := 0
	for _, o := range r.Outcomes {
		if o.Status == domain.DeliveryStatusSent {
			sent++
		}
	}
	return sent
}

// NotificationDispatcher fans a unit notification out to its owners.
type NotificationDispatcher struct {
	transport   provider.MailTransport
	blobs       storage.BlobStorage
	deliveries  repository.DeliveryRepository
	remarks     repository.RemarkRepository
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	fanout      int
	now         func() time.Time
}

func NewNotificationDispatcher(
	transport provider.MailTransport,
	blobs storage.BlobStorage,
	deliveries repository.DeliveryRepository,
	remarks repository.RemarkRepository,
	rateLimiter ratelimit.RateLimiter,
	fanout int,
	logger *zap.Logger,
) (*NotificationDispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("mail transport is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob storage is required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if fanout < 1 {
		fanout = defaultMailFanout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationDispatcher{
		transport:   transport,
		blobs:       blobs,
		deliveries:  deliveries,
		remarks:     remarks,
		rateLimiter: rateLimiter,
		logger:      logger,
		fanout:      fanout,
		now:         time.Now,
	}, nil
}

func (d *NotificationDispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Send emails every eligible owner of the unit. It fails only when no owner could be
// reached; a partial delivery is a success.
func (d *NotificationDispatcher) Send(ctx context.Context, req SendRequest) (*DeliveryResult, error) {
	if req.Details == nil {
		return nil, fmt.Errorf("%w: unit details are required", domain.ErrValidation)
	}

	unitID := req.Details.Unit.ID
	logger := observability.WithUnitLogger(d.logger, ctx, req.BatchID, unitID)

	recipients := req.Details.Recipients()
	if len(recipients) == 0 {
		return nil, domain.NewNoRecipients(unitID)
	}

	attachments := d.loadAttachments(ctx, logger, req.Artifacts)
	subject := mailSubject(req.Intent, req.Details)

	result := &DeliveryResult{Outcomes: make([]RecipientOutcome, len(recipients))}

	g := new(errgroup.Group)
	g.SetLimit(d.fanout)
	for i, owner := range recipients {
		g.Go(func() error {
			msg := provider.Message{
				ToAddress:   strings.TrimSpace(owner.Email),
				ToName:      owner.Name,
				Subject:     subject,
				Body:        mailBody(req.Intent, req.Details, owner),
				Attachments: attachments,
			}
			result.Outcomes[i] = d.sendOne(ctx, logger, req, msg)
			return nil
		})
	}
	_ = g.Wait()

	sent := result.SentCount()
	if sent == 0 {
		// Retrying only helps when at least one recipient failed for a temporary reason.
		transient := false
		errs := make([]error, 0, len(result.Outcomes))
		for _, o := range result.Outcomes {
			errs = append(errs, o.Err)
			if provider.IsTransient(o.Err) {
				transient = true
			}
		}
		return result, domain.NewNotificationFailure(
			fmt.Sprintf("all %d recipients failed", len(recipients)),
			transient,
			errors.Join(errs...),
		)
	}

	d.appendRemark(ctx, logger, domain.TimelineRemark{
		UnitID:   unitID,
		Event:    fmt.Sprintf("%s sent to %d of %d owners", emailLabel(req.Intent), sent, len(recipients)),
		Category: domain.RemarkCategoryEmail,
		AdminID:  req.Initiator,
	})

	return result, nil
}

func (d *NotificationDispatcher) sendOne(
	ctx context.Context,
	logger *zap.Logger,
	req SendRequest,
	msg provider.Message,
) (outcome RecipientOutcome) {
	outcome = RecipientOutcome{Recipient: msg.ToAddress, Name: msg.ToName}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = &provider.ProviderError{Message: fmt.Sprintf("mail transport panicked: %v", r)}
		}
		outcome.Status = domain.DeliveryStatusSent
		if outcome.Err != nil {
			outcome.Status = domain.DeliveryStatusFailed
		}
		d.logDelivery(ctx, logger, req, msg, outcome)
	}()

	if d.rateLimiter != nil {
		if err := d.rateLimiter.Wait(ctx, ratelimit.ScopeMail); err != nil {
			outcome.Err = &provider.ProviderError{Message: "rate limiter wait failed", Transient: true, Cause: err}
			return outcome
		}
	}

	outcome.Err = d.transport.Send(ctx, msg)
	return outcome
}

func (d *NotificationDispatcher) logDelivery(
	ctx context.Context,
	logger *zap.Logger,
	req SendRequest,
	msg provider.Message,
	outcome RecipientOutcome,
) {
	entry := &domain.DeliveryLog{
		ID:            uuid.NewString(),
		UnitID:        req.Details.Unit.ID,
		Recipient:     msg.ToAddress,
		RecipientName: msg.ToName,
		Subject:       msg.Subject,
		Status:        outcome.Status,
		AttemptedAt:   d.now().UTC(),
	}
	if req.BatchID != "" {
		batchID := req.BatchID
		entry.BatchID = &batchID
	}
	if outcome.Err != nil {
		value := outcome.Err.Error()
		entry.Error = &value
		logger.Warn("email delivery failed",
			zap.String("recipient", msg.ToAddress),
			zap.Error(outcome.Err),
		)
	}
	d.metrics.IncDelivery(outcome.Status.String())

	// The log must survive a cancelled task context.
	writeCtx := context.WithoutCancel(ctx)
	if err := d.deliveries.Create(writeCtx, entry); err != nil {
		logger.Error("failed to write delivery log",
			zap.String("recipient", msg.ToAddress),
			zap.String("status", outcome.Status.String()),
			zap.Error(err),
		)
	}
}

func (d *NotificationDispatcher) loadAttachments(
	ctx context.Context,
	logger *zap.Logger,
	artifacts []domain.UnitArtifact,
) []provider.Attachment {
	attachments := make([]provider.Attachment, 0, len(artifacts))
	for _, artifact := range artifacts {
		data, err := d.blobs.Get(ctx, artifact.StoragePath)
		if err != nil {
			logger.Warn("attachment unavailable, sending without it",
				zap.String("documentType", artifact.DocumentType.String()),
				zap.String("storagePath", artifact.StoragePath),
				zap.Error(err),
			)
			continue
		}
		attachments = append(attachments, provider.Attachment{
			FileName:    artifact.FileName,
			ContentType: pdfContentType,
			Data:        data,
		})
	}

	return attachments
}

func (d *NotificationDispatcher) appendRemark(ctx context.Context, logger *zap.Logger, remark domain.TimelineRemark) {
	if d.remarks == nil {
		return
	}
	remark.ID = uuid.NewString()
	remark.OccurredAt = d.now().UTC()
	if err := d.remarks.Create(context.WithoutCancel(ctx), &remark); err != nil {
		logger.Warn("failed to append timeline remark", zap.Error(err))
	}
}

func emailLabel(intent domain.Intent) string {
	if intent == domain.IntentSendSOAEmail {
		return "Statement of account email"
	}
	return "Handover email"
}

func mailSubject(intent domain.Intent, details *domain.UnitDetails) string {
	prefix := "Unit Handover Documents"
	if intent == domain.IntentSendSOAEmail {
		prefix = "Statement of Account"
	}
	return fmt.Sprintf("%s - %s Unit %s", prefix, details.Property.Name, details.Unit.UnitNumber)
}

func mailBody(intent domain.Intent, details *domain.UnitDetails, owner domain.Owner) string {
	name := strings.TrimSpace(owner.Name)
	if name == "" {
		name = "Homeowner"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	if intent == domain.IntentSendSOAEmail {
		fmt.Fprintf(&b, "Please find attached the statement of account for unit %s at %s.\n",
			details.Unit.UnitNumber, details.Property.Name)
	} else {
		fmt.Fprintf(&b, "Your unit %s at %s is ready for handover. The handover documents are attached.\n",
			details.Unit.UnitNumber, details.Property.Name)
	}
	b.WriteString("\nRegards,\nThe Handover Team\n")
	return b.String()
}
