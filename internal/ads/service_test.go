package ads

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/internal/points"
	"github.com/themelab-io/themeboard-backend/pkg/config"
	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
	apperrors "github.com/themelab-io/themeboard-backend/pkg/errors"
	"github.com/themelab-io/themeboard-backend/pkg/outbox"
)

type stubAdsRepo struct {
	requests map[uuid.UUID]*models.AdRequest
	facts    []models.AdEventFact
}

func newStubAdsRepo() *stubAdsRepo {
	return &stubAdsRepo{requests: make(map[uuid.UUID]*models.AdRequest)}
}

func (s *stubAdsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubAdsRepo) LockScheduler(ctx context.Context) error {
	return nil
}

func (s *stubAdsRepo) Create(ctx context.Context, request *models.AdRequest) (*models.AdRequest, error) {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	clone := *request
	s.requests[request.ID] = &clone
	return request, nil
}

func (s *stubAdsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.AdRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *request
	return &clone, nil
}

func (s *stubAdsRepo) FindLiveByTheme(ctx context.Context, themeID uuid.UUID) (*models.AdRequest, error) {
	for _, request := range s.requests {
		if request.ThemeID == themeID && request.Status.IsLive() {
			clone := *request
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAdsRepo) CountActive(ctx context.Context) (int64, error) {
	var count int64
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusActive {
			count++
		}
	}
	return count, nil
}

func (s *stubAdsRepo) CountQueued(ctx context.Context) (int64, error) {
	var count int64
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusPendingQueue {
			count++
		}
	}
	return count, nil
}

func (s *stubAdsRepo) MaxDisplayOrder(ctx context.Context) (int, error) {
	max := 0
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusActive && request.DisplayOrder != nil && *request.DisplayOrder > max {
			max = *request.DisplayOrder
		}
	}
	return max, nil
}

func (s *stubAdsRepo) MaxQueuePosition(ctx context.Context) (int, error) {
	max := 0
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusPendingQueue && request.QueuePosition != nil && *request.QueuePosition > max {
			max = *request.QueuePosition
		}
	}
	return max, nil
}

func (s *stubAdsRepo) QueueHead(ctx context.Context) (*models.AdRequest, error) {
	queued, err := s.ListQueued(ctx)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	head := queued[0]
	return &head, nil
}

func (s *stubAdsRepo) ListActive(ctx context.Context) ([]models.AdRequest, error) {
	var active []models.AdRequest
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusActive {
			active = append(active, *request)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return *active[i].DisplayOrder < *active[j].DisplayOrder
	})
	return active, nil
}

func (s *stubAdsRepo) ListQueued(ctx context.Context) ([]models.AdRequest, error) {
	var queued []models.AdRequest
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusPendingQueue {
			queued = append(queued, *request)
		}
	}
	sort.Slice(queued, func(i, j int) bool {
		return *queued[i].QueuePosition < *queued[j].QueuePosition
	})
	return queued, nil
}

func (s *stubAdsRepo) ListExpiredActive(ctx context.Context, cutoff time.Time) ([]models.AdRequest, error) {
	var expired []models.AdRequest
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusActive && request.ExpiresAt != nil && !request.ExpiresAt.After(cutoff) {
			expired = append(expired, *request)
		}
	}
	return expired, nil
}

func (s *stubAdsRepo) ListByStatus(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error) {
	switch status {
	case enums.AdRequestStatusActive:
		return s.ListActive(ctx)
	case enums.AdRequestStatusPendingQueue:
		return s.ListQueued(ctx)
	}
	var matched []models.AdRequest
	for _, request := range s.requests {
		if request.Status == status {
			matched = append(matched, *request)
		}
	}
	return matched, nil
}

func (s *stubAdsRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AdRequest, error) {
	var matched []models.AdRequest
	for _, request := range s.requests {
		if request.UserID == userID {
			matched = append(matched, *request)
		}
	}
	return matched, nil
}

func (s *stubAdsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	request, ok := s.requests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			if v, ok := value.(enums.AdRequestStatus); ok {
				request.Status = v
			}
		case "queue_position":
			if value == nil {
				request.QueuePosition = nil
			} else if v, ok := value.(int); ok {
				request.QueuePosition = &v
			}
		case "display_order":
			if value == nil {
				request.DisplayOrder = nil
			} else if v, ok := value.(int); ok {
				request.DisplayOrder = &v
			}
		case "remaining_days":
			if v, ok := value.(int); ok {
				request.RemainingDays = v
			}
		case "started_at":
			if v, ok := value.(time.Time); ok {
				request.StartedAt = &v
			}
		case "expires_at":
			if v, ok := value.(time.Time); ok {
				request.ExpiresAt = &v
			}
		case "canceled_at":
			if v, ok := value.(time.Time); ok {
				request.CanceledAt = &v
			}
		}
	}
	return nil
}

func (s *stubAdsRepo) DecrementQueuePositionsAfter(ctx context.Context, position int) error {
	for _, request := range s.requests {
		if request.Status == enums.AdRequestStatusPendingQueue && request.QueuePosition != nil && *request.QueuePosition > position {
			next := *request.QueuePosition - 1
			request.QueuePosition = &next
		}
	}
	return nil
}

func (s *stubAdsRepo) IncrementClickCount(ctx context.Context, id uuid.UUID) (bool, error) {
	request, ok := s.requests[id]
	if !ok {
		return false, nil
	}
	request.ClickCount++
	return true, nil
}

func (s *stubAdsRepo) IncrementExposureCount(ctx context.Context, id uuid.UUID) (bool, error) {
	request, ok := s.requests[id]
	if !ok {
		return false, nil
	}
	request.ExposureCount++
	return true, nil
}

func (s *stubAdsRepo) InsertEventFact(ctx context.Context, fact *models.AdEventFact) error {
	s.facts = append(s.facts, *fact)
	return nil
}

type recordingPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (r *recordingPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) eventTypes() []enums.OutboxEventType {
	types := make([]enums.OutboxEventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.EventType)
	}
	return types
}

type stubPointsService struct {
	balance    int64
	chargeErr  error
	charges    []points.ChargeInput
	refunds    []points.RefundInput
	refundErr  error
	lastAmount int64
}

func (s *stubPointsService) Charge(ctx context.Context, tx *gorm.DB, input points.ChargeInput) (int64, error) {
	if s.chargeErr != nil {
		return 0, s.chargeErr
	}
	s.charges = append(s.charges, input)
	s.lastAmount = input.Amount
	s.balance -= input.Amount
	return s.balance, nil
}

func (s *stubPointsService) Refund(ctx context.Context, tx *gorm.DB, input points.RefundInput) (int64, error) {
	if s.refundErr != nil {
		return 0, s.refundErr
	}
	s.refunds = append(s.refunds, input)
	s.balance += input.Amount
	return s.balance, nil
}

func (s *stubPointsService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.balance, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testAdsConfig() config.AdsConfig {
	return config.AdsConfig{
		SlotCapacity:            2,
		RotationIntervalSeconds: 6,
		DefaultDurationDays:     7,
		MaxDurationDays:         90,
		SlotPricePoints:         100,
	}
}

func newTestService(t *testing.T, repo *stubAdsRepo, publisher *recordingPublisher, pointsSvc *stubPointsService) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, publisher, pointsSvc, testAdsConfig())
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func seedActive(repo *stubAdsRepo, order int, expiresAt time.Time) *models.AdRequest {
	started := expiresAt.Add(-7 * 24 * time.Hour)
	request := &models.AdRequest{
		ID:           uuid.New(),
		ThemeID:      uuid.New(),
		UserID:       uuid.New(),
		Status:       enums.AdRequestStatusActive,
		DisplayOrder: &order,
		DurationDays: 7,
		PricePoints:  700,
		StartedAt:    &started,
		ExpiresAt:    &expiresAt,
	}
	repo.requests[request.ID] = request
	return request
}

func seedQueued(repo *stubAdsRepo, position int) *models.AdRequest {
	request := &models.AdRequest{
		ID:            uuid.New(),
		ThemeID:       uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.AdRequestStatusPendingQueue,
		QueuePosition: &position,
		DurationDays:  7,
		PricePoints:   700,
	}
	repo.requests[request.ID] = request
	return request
}

func TestSubmitActivatesWhenSlotFree(t *testing.T) {
	repo := newStubAdsRepo()
	seedActive(repo, 1, time.Now().Add(48*time.Hour))
	publisher := &recordingPublisher{}
	pointsSvc := &stubPointsService{balance: 10_000}
	svc := newTestService(t, repo, publisher, pointsSvc)

	result, err := svc.Submit(context.Background(), SubmitInput{
		ThemeID:      uuid.New(),
		UserID:       uuid.New(),
		DurationDays: 7,
		ActorRole:    enums.ActorRoleUser,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Status != enums.AdRequestStatusActive {
		t.Fatalf("expected active got %s", result.Status)
	}
	if result.QueuePosition != nil {
		t.Fatalf("active placement must not have a queue position")
	}
	if result.ExpiresAt == nil {
		t.Fatal("active placement missing expiry")
	}
	if result.PricePoints != 700 {
		t.Fatalf("expected 700 points got %d", result.PricePoints)
	}
	if result.EstimatedDailyExposure != 7200 {
		t.Fatalf("expected 7200 exposure got %d", result.EstimatedDailyExposure)
	}

	stored, err := repo.FindByID(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("stored request missing: %v", err)
	}
	if stored.DisplayOrder == nil || *stored.DisplayOrder != 2 {
		t.Fatalf("expected display order 2 got %v", stored.DisplayOrder)
	}
	if len(pointsSvc.charges) != 1 || pointsSvc.charges[0].Amount != 700 {
		t.Fatalf("expected one 700 point charge got %+v", pointsSvc.charges)
	}

	types := publisher.eventTypes()
	if len(types) != 3 {
		t.Fatalf("expected 3 events got %v", types)
	}
	if types[0] != enums.EventPointsDebited || types[1] != enums.EventAdSlotSubmitted || types[2] != enums.EventAdSlotActivated {
		t.Fatalf("unexpected event sequence %v", types)
	}
}

func TestSubmitQueuesWhenBoardFull(t *testing.T) {
	repo := newStubAdsRepo()
	seedActive(repo, 1, time.Now().Add(48*time.Hour))
	seedActive(repo, 2, time.Now().Add(72*time.Hour))
	seedQueued(repo, 1)
	publisher := &recordingPublisher{}
	pointsSvc := &stubPointsService{balance: 10_000}
	svc := newTestService(t, repo, publisher, pointsSvc)

	result, err := svc.Submit(context.Background(), SubmitInput{
		ThemeID:      uuid.New(),
		UserID:       uuid.New(),
		DurationDays: 7,
		ActorRole:    enums.ActorRoleUser,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Status != enums.AdRequestStatusPendingQueue {
		t.Fatalf("expected pending_queue got %s", result.Status)
	}
	if result.QueuePosition == nil || *result.QueuePosition != 2 {
		t.Fatalf("expected queue position 2 got %v", result.QueuePosition)
	}
	if result.ExpiresAt != nil {
		t.Fatal("queued placement must not have an expiry")
	}

	types := publisher.eventTypes()
	if len(types) != 2 {
		t.Fatalf("expected 2 events got %v", types)
	}
	if types[1] != enums.EventAdSlotSubmitted {
		t.Fatalf("expected submitted event got %v", types)
	}
}

func TestSubmitRejectsDuplicateTheme(t *testing.T) {
	repo := newStubAdsRepo()
	existing := seedActive(repo, 1, time.Now().Add(48*time.Hour))
	publisher := &recordingPublisher{}
	pointsSvc := &stubPointsService{balance: 10_000}
	svc := newTestService(t, repo, publisher, pointsSvc)

	_, err := svc.Submit(context.Background(), SubmitInput{
		ThemeID:      existing.ThemeID,
		UserID:       uuid.New(),
		DurationDays: 7,
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeConflict {
		t.Fatalf("expected conflict got %v", err)
	}
	if len(pointsSvc.charges) != 0 {
		t.Fatalf("no points must move on rejection")
	}
}

func TestSubmitRejectsDurationOutOfRange(t *testing.T) {
	repo := newStubAdsRepo()
	svc := newTestService(t, repo, &recordingPublisher{}, &stubPointsService{balance: 10_000})

	_, err := svc.Submit(context.Background(), SubmitInput{
		ThemeID:      uuid.New(),
		UserID:       uuid.New(),
		DurationDays: 91,
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestSubmitDefaultsDuration(t *testing.T) {
	repo := newStubAdsRepo()
	pointsSvc := &stubPointsService{balance: 10_000}
	svc := newTestService(t, repo, &recordingPublisher{}, pointsSvc)

	result, err := svc.Submit(context.Background(), SubmitInput{
		ThemeID: uuid.New(),
		UserID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.PricePoints != 700 {
		t.Fatalf("expected default 7 day price got %d", result.PricePoints)
	}
}

func TestSubmitPropagatesInsufficientBalance(t *testing.T) {
	repo := newStubAdsRepo()
	pointsSvc := &stubPointsService{
		chargeErr: apperrors.New(apperrors.CodeInsufficientBalance, "point balance does not cover the placement price"),
	}
	svc := newTestService(t, repo, &recordingPublisher{}, pointsSvc)

	_, err := svc.Submit(context.Background(), SubmitInput{
		ThemeID:      uuid.New(),
		UserID:       uuid.New(),
		DurationDays: 7,
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeInsufficientBalance {
		t.Fatalf("expected insufficient balance got %v", err)
	}
}

func TestCancelRenumbersQueue(t *testing.T) {
	repo := newStubAdsRepo()
	seedActive(repo, 1, time.Now().Add(48*time.Hour))
	seedActive(repo, 2, time.Now().Add(72*time.Hour))
	first := seedQueued(repo, 1)
	second := seedQueued(repo, 2)
	third := seedQueued(repo, 3)
	publisher := &recordingPublisher{}
	pointsSvc := &stubPointsService{}
	svc := newTestService(t, repo, publisher, pointsSvc)

	result, err := svc.Cancel(context.Background(), CancelInput{
		AdRequestID: first.ID,
		UserID:      first.UserID,
		ActorRole:   enums.ActorRoleUser,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.RefundedPoints != 700 {
		t.Fatalf("expected 700 refund got %d", result.RefundedPoints)
	}

	canceled, _ := repo.FindByID(context.Background(), first.ID)
	if canceled.Status != enums.AdRequestStatusCanceled {
		t.Fatalf("expected canceled got %s", canceled.Status)
	}
	if canceled.QueuePosition != nil {
		t.Fatal("canceled request must leave the queue")
	}

	queued, _ := repo.ListQueued(context.Background())
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued got %d", len(queued))
	}
	if queued[0].ID != second.ID || *queued[0].QueuePosition != 1 {
		t.Fatalf("expected second request at position 1 got %+v", queued[0])
	}
	if queued[1].ID != third.ID || *queued[1].QueuePosition != 2 {
		t.Fatalf("expected third request at position 2 got %+v", queued[1])
	}

	if len(pointsSvc.refunds) != 1 || pointsSvc.refunds[0].Amount != 700 {
		t.Fatalf("expected one 700 point refund got %+v", pointsSvc.refunds)
	}
	types := publisher.eventTypes()
	if len(types) != 2 || types[0] != enums.EventPointsRefunded || types[1] != enums.EventAdSlotCanceled {
		t.Fatalf("unexpected event sequence %v", types)
	}
}

func TestCancelRejectsForeignRequest(t *testing.T) {
	repo := newStubAdsRepo()
	queued := seedQueued(repo, 1)
	svc := newTestService(t, repo, &recordingPublisher{}, &stubPointsService{})

	_, err := svc.Cancel(context.Background(), CancelInput{
		AdRequestID: queued.ID,
		UserID:      uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestCancelRejectsActiveRequest(t *testing.T) {
	repo := newStubAdsRepo()
	active := seedActive(repo, 1, time.Now().Add(48*time.Hour))
	pointsSvc := &stubPointsService{}
	svc := newTestService(t, repo, &recordingPublisher{}, pointsSvc)

	_, err := svc.Cancel(context.Background(), CancelInput{
		AdRequestID: active.ID,
		UserID:      active.UserID,
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
	if len(pointsSvc.refunds) != 0 {
		t.Fatal("active request must not be refunded")
	}
}

func TestEstimateExposure(t *testing.T) {
	repo := newStubAdsRepo()
	seedActive(repo, 1, time.Now().Add(48*time.Hour))
	seedActive(repo, 2, time.Now().Add(72*time.Hour))
	svc := newTestService(t, repo, &recordingPublisher{}, &stubPointsService{})

	estimate, err := svc.EstimateExposure(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if estimate.ActiveCount != 2 {
		t.Fatalf("expected 2 active got %d", estimate.ActiveCount)
	}
	if estimate.EstimatedDailyExposure != 7200 {
		t.Fatalf("expected 7200 got %d", estimate.EstimatedDailyExposure)
	}
	if estimate.EstimatedTotalExposure != 50400 {
		t.Fatalf("expected 50400 got %d", estimate.EstimatedTotalExposure)
	}
}

func TestTrackClickRecordsFact(t *testing.T) {
	repo := newStubAdsRepo()
	active := seedActive(repo, 1, time.Now().Add(48*time.Hour))
	svc := newTestService(t, repo, &recordingPublisher{}, &stubPointsService{})

	if err := svc.TrackClick(context.Background(), active.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if err := svc.TrackExposure(context.Background(), active.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), active.ID)
	if stored.ClickCount != 1 || stored.ExposureCount != 1 {
		t.Fatalf("expected counters 1/1 got %d/%d", stored.ClickCount, stored.ExposureCount)
	}
	if len(repo.facts) != 2 {
		t.Fatalf("expected 2 facts got %d", len(repo.facts))
	}
}

func TestTrackClickUnknownRequest(t *testing.T) {
	repo := newStubAdsRepo()
	svc := newTestService(t, repo, &recordingPublisher{}, &stubPointsService{})

	err := svc.TrackClick(context.Background(), uuid.New())
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
}
