package service

import (
	"context"
	"sync"
	"time"

	"github.com/handover/docbatch/internal/domain"
	"github.com/handover/docbatch/internal/provider"
	"github.com/handover/docbatch/internal/queue"
	"github.com/handover/docbatch/internal/ratelimit"
	"github.com/handover/docbatch/internal/repository"
)

type fakeBatchRepo struct {
	createFn             func(ctx context.Context, b *domain.Batch, unitIDs []string) error
	getByIDFn            func(ctx context.Context, id string) (*domain.Batch, error)
	recordOutcomeFn      func(ctx context.Context, params repository.OutcomeParams) (*domain.OutcomeResult, error)
	getItemFn            func(ctx context.Context, batchID string, unitID string) (*domain.BatchItem, error)
	listItemsFn          func(ctx context.Context, batchID string) ([]domain.BatchItem, error)
	listPendingUnitIDsFn func(ctx context.Context, batchID string) ([]string, error)
	listStaleFn          func(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Batch, error)
	touchFn              func(ctx context.Context, id string) error
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch, unitIDs []string) error {
	if f.createFn != nil {
		return f.createFn(ctx, b, unitIDs)
	}
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchRepo) RecordOutcome(ctx context.Context, params repository.OutcomeParams) (*domain.OutcomeResult, error) {
	if f.recordOutcomeFn != nil {
		return f.recordOutcomeFn(ctx, params)
	}
	return &domain.OutcomeResult{Batch: &domain.Batch{ID: params.BatchID}}, nil
}

func (f *fakeBatchRepo) GetItem(ctx context.Context, batchID string, unitID string) (*domain.BatchItem, error) {
	if f.getItemFn != nil {
		return f.getItemFn(ctx, batchID, unitID)
	}
	return &domain.BatchItem{BatchID: batchID, UnitID: unitID, Outcome: domain.ItemOutcomePending}, nil
}

func (f *fakeBatchRepo) ListItems(ctx context.Context, batchID string) ([]domain.BatchItem, error) {
	if f.listItemsFn != nil {
		return f.listItemsFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeBatchRepo) ListPendingUnitIDs(ctx context.Context, batchID string) ([]string, error) {
	if f.listPendingUnitIDsFn != nil {
		return f.listPendingUnitIDsFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeBatchRepo) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Batch, error) {
	if f.listStaleFn != nil {
		return f.listStaleFn(ctx, updatedBefore, limit)
	}
	return nil, nil
}

func (f *fakeBatchRepo) Touch(ctx context.Context, id string) error {
	if f.touchFn != nil {
		return f.touchFn(ctx, id)
	}
	return nil
}

type fakeUnitRepo struct {
	getDetailsFn                func(ctx context.Context, unitID string) (*domain.UnitDetails, error)
	listUnitIDsWithRecipientsFn func(ctx context.Context, propertyID string) ([]string, error)
}

func (f *fakeUnitRepo) GetDetails(ctx context.Context, unitID string) (*domain.UnitDetails, error) {
	if f.getDetailsFn != nil {
		return f.getDetailsFn(ctx, unitID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUnitRepo) ListUnitIDsWithRecipients(ctx context.Context, propertyID string) ([]string, error) {
	if f.listUnitIDsWithRecipientsFn != nil {
		return f.listUnitIDsWithRecipientsFn(ctx, propertyID)
	}
	return nil, nil
}

type fakeArtifactRepo struct {
	createFn     func(ctx context.Context, a *domain.UnitArtifact) error
	getCurrentFn func(ctx context.Context, unitID string, docType domain.DocumentType) (*domain.UnitArtifact, error)
	listByUnitFn func(ctx context.Context, unitID string) ([]domain.UnitArtifact, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeArtifactRepo) Create(ctx context.Context, a *domain.UnitArtifact) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeArtifactRepo) GetCurrent(ctx context.Context, unitID string, docType domain.DocumentType) (*domain.UnitArtifact, error) {
	if f.getCurrentFn != nil {
		return f.getCurrentFn(ctx, unitID, docType)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeArtifactRepo) ListByUnit(ctx context.Context, unitID string) ([]domain.UnitArtifact, error) {
	if f.listByUnitFn != nil {
		return f.listByUnitFn(ctx, unitID)
	}
	return nil, nil
}

func (f *fakeArtifactRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

// recordingDeliveryRepo keeps every delivery log it is given.
type recordingDeliveryRepo struct {
	mu       sync.Mutex
	logs     []domain.DeliveryLog
	createFn func(ctx context.Context, d *domain.DeliveryLog) error
}

func (f *recordingDeliveryRepo) Create(ctx context.Context, d *domain.DeliveryLog) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, d); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *d)
	return nil
}

func (f *recordingDeliveryRepo) ListByUnit(_ context.Context, unitID string) ([]domain.DeliveryLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DeliveryLog, 0, len(f.logs))
	for _, l := range f.logs {
		if l.UnitID == unitID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *recordingDeliveryRepo) snapshot() []domain.DeliveryLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DeliveryLog, len(f.logs))
	copy(out, f.logs)
	return out
}

type recordingRemarkRepo struct {
	mu       sync.Mutex
	remarks  []domain.TimelineRemark
	createFn func(ctx context.Context, r *domain.TimelineRemark) error
}

func (f *recordingRemarkRepo) Create(ctx context.Context, r *domain.TimelineRemark) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, r); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remarks = append(f.remarks, *r)
	return nil
}

func (f *recordingRemarkRepo) ListByUnit(_ context.Context, unitID string) ([]domain.TimelineRemark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TimelineRemark, 0, len(f.remarks))
	for _, r := range f.remarks {
		if r.UnitID == unitID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *recordingRemarkRepo) snapshot() []domain.TimelineRemark {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TimelineRemark, len(f.remarks))
	copy(out, f.remarks)
	return out
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.UnitTaskMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.UnitTaskMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, scope string) (bool, error)
	waitFn  func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, scope)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, scope)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

type fakeMailTransport struct {
	sendFn func(ctx context.Context, msg provider.Message) error
}

func (f *fakeMailTransport) Send(ctx context.Context, msg provider.Message) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return nil
}

type fakeRenderer struct {
	renderFn func(ctx context.Context, templateName string, data any) ([]byte, error)
}

func (f *fakeRenderer) Render(ctx context.Context, templateName string, data any) ([]byte, error) {
	if f.renderFn != nil {
		return f.renderFn(ctx, templateName, data)
	}
	return []byte("%PDF-1.4 " + templateName), nil
}

type fakeLocker struct {
	lockFn func(ctx context.Context, unitID string) (func(context.Context) error, error)
}

func (f *fakeLocker) Lock(ctx context.Context, unitID string) (func(context.Context) error, error) {
	if f.lockFn != nil {
		return f.lockFn(ctx, unitID)
	}
	return func(context.Context) error { return nil }, nil
}

type fakeStatusCache struct {
	getFn func(ctx context.Context, batchID string) (*domain.Batch, error)
	setFn func(ctx context.Context, batch *domain.Batch) error
}

func (f *fakeStatusCache) Get(ctx context.Context, batchID string) (*domain.Batch, error) {
	if f.getFn != nil {
		return f.getFn(ctx, batchID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStatusCache) Set(ctx context.Context, batch *domain.Batch) error {
	if f.setFn != nil {
		return f.setFn(ctx, batch)
	}
	return nil
}

type fakeCompletionNotifier struct {
	notifyFn func(ctx context.Context, summary provider.CompletionSummary) error
}

func (f *fakeCompletionNotifier) NotifyCompletion(ctx context.Context, summary provider.CompletionSummary) error {
	if f.notifyFn != nil {
		return f.notifyFn(ctx, summary)
	}
	return nil
}

type fakeExecutor struct {
	executeFn func(ctx context.Context, task domain.UnitTask) error
}

func (f *fakeExecutor) Execute(ctx context.Context, task domain.UnitTask) error {
	if f.executeFn != nil {
		return f.executeFn(ctx, task)
	}
	return nil
}

type fakeRecorder struct {
	recordFn      func(ctx context.Context, result domain.TaskResult) (*domain.OutcomeResult, error)
	itemPendingFn func(ctx context.Context, batchID string, unitID string) (bool, error)
}

func (f *fakeRecorder) ItemPending(ctx context.Context, batchID string, unitID string) (bool, error) {
	if f.itemPendingFn != nil {
		return f.itemPendingFn(ctx, batchID, unitID)
	}
	return true, nil
}

func (f *fakeRecorder) Record(ctx context.Context, result domain.TaskResult) (*domain.OutcomeResult, error) {
	if f.recordFn != nil {
		return f.recordFn(ctx, result)
	}
	return &domain.OutcomeResult{}, nil
}

var (
	_ repository.BatchRepository    = (*fakeBatchRepo)(nil)
	_ repository.UnitRepository     = (*fakeUnitRepo)(nil)
	_ repository.ArtifactRepository = (*fakeArtifactRepo)(nil)
	_ repository.DeliveryRepository = (*recordingDeliveryRepo)(nil)
	_ repository.RemarkRepository   = (*recordingRemarkRepo)(nil)
	_ queue.Publisher               = (*fakePublisher)(nil)
	_ queue.Consumer                = (*fakeConsumer)(nil)
	_ provider.MailTransport        = (*fakeMailTransport)(nil)
	_ UnitLocker                    = (*fakeLocker)(nil)
	_ StatusCache                   = (*fakeStatusCache)(nil)
	_ provider.CompletionNotifier   = (*fakeCompletionNotifier)(nil)
	_ TaskExecutor                  = (*fakeExecutor)(nil)
	_ OutcomeRecorder               = (*fakeRecorder)(nil)
	_ TaskLedger                    = (*fakeRecorder)(nil)
	_ TaskLedger                    = (*ProgressAggregator)(nil)
)

func testUnitDetails(unitID string, owners ...domain.Owner) *domain.UnitDetails {
	return &domain.UnitDetails{
		Unit:     domain.Unit{ID: unitID, PropertyID: "p1", UnitNumber: "12A", Floor: "12"},
		Property: domain.Property{ID: "p1", Name: "Harbour View", Address: "1 Quay Street"},
		Owners:   owners,
	}
}
