package ads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/internal/points"
	"github.com/themelab-io/themeboard-backend/pkg/config"
	dbpkg "github.com/themelab-io/themeboard-backend/pkg/db"
	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
	apperrors "github.com/themelab-io/themeboard-backend/pkg/errors"
	"github.com/themelab-io/themeboard-backend/pkg/outbox"
	"github.com/themelab-io/themeboard-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the admission, queue, and tracking operations for paid
// theme placements.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
	Cancel(ctx context.Context, input CancelInput) (*CancelResult, error)
	Get(ctx context.Context, adRequestID, userID uuid.UUID, role enums.ActorRole) (*models.AdRequest, error)
	ListByStatus(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AdRequest, error)
	EstimateExposure(ctx context.Context, days int) (*ExposureEstimate, error)
	TrackClick(ctx context.Context, adRequestID uuid.UUID) error
	TrackExposure(ctx context.Context, adRequestID uuid.UUID) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	points    points.Service
	cfg       config.AdsConfig
	estimator Estimator
	now       func() time.Time
}

// NewService wires the slot scheduler with its collaborators.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, pointsSvc points.Service, cfg config.AdsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ads repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if pointsSvc == nil {
		return nil, fmt.Errorf("points service required")
	}
	if cfg.SlotCapacity <= 0 {
		return nil, fmt.Errorf("slot capacity must be positive")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    publisher,
		points:    pointsSvc,
		cfg:       cfg,
		estimator: NewEstimator(cfg.RotationIntervalSeconds),
		now:       time.Now,
	}, nil
}

// Submit admits a placement request. When the board has a free slot the
// request activates immediately; otherwise it joins the FIFO queue. The whole
// decision runs under the scheduler advisory lock so two concurrent submits
// can never both take the last slot.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if input.ThemeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "theme id required")
	}
	if input.UserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "user identity missing")
	}

	durationDays := input.DurationDays
	if durationDays == 0 {
		durationDays = s.cfg.DefaultDurationDays
	}
	if durationDays < 1 || durationDays > s.cfg.MaxDurationDays {
		return nil, apperrors.New(apperrors.CodeValidation, "duration days out of range").
			WithDetails(map[string]any{"min": 1, "max": s.cfg.MaxDurationDays})
	}

	price := int64(durationDays) * s.cfg.SlotPricePoints
	actor := &outbox.ActorRef{UserID: input.UserID, Role: string(input.ActorRole)}

	var result SubmitResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockScheduler(ctx); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "acquire scheduler lock")
		}

		if _, err := repo.FindLiveByTheme(ctx, input.ThemeID); err == nil {
			return apperrors.New(apperrors.CodeConflict, "theme already has a live placement")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.CodeDependency, err, "check live placement")
		}

		activeCount, err := repo.CountActive(ctx)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "count active placements")
		}

		now := s.now().UTC()
		request := &models.AdRequest{
			ID:            uuid.New(),
			ThemeID:       input.ThemeID,
			UserID:        input.UserID,
			DurationDays:  durationDays,
			RemainingDays: durationDays,
			PricePoints:   price,
			RequestedAt:   now,
		}

		if activeCount < int64(s.cfg.SlotCapacity) {
			maxOrder, err := repo.MaxDisplayOrder(ctx)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeDependency, err, "resolve display order")
			}
			order := maxOrder + 1
			expiresAt := now.Add(time.Duration(durationDays) * 24 * time.Hour)
			request.Status = enums.AdRequestStatusActive
			request.DisplayOrder = &order
			request.StartedAt = &now
			request.ExpiresAt = &expiresAt
			activeCount++
		} else {
			maxPos, err := repo.MaxQueuePosition(ctx)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeDependency, err, "resolve queue position")
			}
			pos := maxPos + 1
			request.Status = enums.AdRequestStatusPendingQueue
			request.QueuePosition = &pos
		}

		if _, err := repo.Create(ctx, request); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "create ad request")
		}

		balance, err := s.points.Charge(ctx, tx, points.ChargeInput{
			UserID:      input.UserID,
			AdRequestID: request.ID,
			Amount:      price,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPointsDebited,
			AggregateType: enums.AggregatePointAccount,
			AggregateID:   input.UserID,
			Version:       1,
			Actor:         actor,
			Data: payloads.PointsDebitedEvent{
				UserID:      input.UserID,
				AdRequestID: request.ID,
				Amount:      price,
				Balance:     balance,
			},
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdSlotSubmitted,
			AggregateType: enums.AggregateAdRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AdSlotSubmittedEvent{
				AdRequestID:   request.ID,
				ThemeID:       request.ThemeID,
				UserID:        request.UserID,
				Status:        string(request.Status),
				DisplayOrder:  request.DisplayOrder,
				QueuePosition: request.QueuePosition,
				DurationDays:  request.DurationDays,
				PricePoints:   request.PricePoints,
			},
		}); err != nil {
			return err
		}

		if request.Status == enums.AdRequestStatusActive {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventAdSlotActivated,
				AggregateType: enums.AggregateAdRequest,
				AggregateID:   request.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.AdSlotActivatedEvent{
					AdRequestID:  request.ID,
					ThemeID:      request.ThemeID,
					DisplayOrder: *request.DisplayOrder,
					StartedAt:    *request.StartedAt,
					ExpiresAt:    *request.ExpiresAt,
				},
			}); err != nil {
				return err
			}
		}

		result = SubmitResult{
			ID:                     request.ID,
			Status:                 request.Status,
			QueuePosition:          request.QueuePosition,
			ExpiresAt:              request.ExpiresAt,
			PricePoints:            price,
			EstimatedDailyExposure: s.estimator.EstimatedDailyExposure(int(activeCount)),
		}
		return nil
	})
	if err != nil {
		if dbpkg.IsSerializationFailure(err) {
			return nil, apperrors.Wrap(apperrors.CodeCapacityConflict, err, "concurrent admission detected")
		}
		return nil, err
	}
	return &result, nil
}

// Cancel withdraws a queued request, refunds its points, and renumbers the
// remaining queue so positions stay contiguous. Active, expired, and canceled
// requests cannot be withdrawn.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*CancelResult, error) {
	if input.AdRequestID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "ad request id required")
	}
	if input.UserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "user identity missing")
	}

	actor := &outbox.ActorRef{UserID: input.UserID, Role: string(input.ActorRole)}

	var result CancelResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockScheduler(ctx); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "acquire scheduler lock")
		}

		request, err := repo.FindByID(ctx, input.AdRequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "ad request not found")
			}
			return apperrors.Wrap(apperrors.CodeDependency, err, "load ad request")
		}
		if request.UserID != input.UserID {
			return apperrors.New(apperrors.CodeForbidden, "ad request does not belong to user")
		}
		if request.Status != enums.AdRequestStatusPendingQueue {
			return apperrors.New(apperrors.CodeNotFound, "no cancellable queued request")
		}

		now := s.now().UTC()
		removedPos := *request.QueuePosition
		updates := map[string]any{
			"status":         enums.AdRequestStatusCanceled,
			"queue_position": nil,
			"canceled_at":    now,
		}
		if err := repo.Update(ctx, request.ID, updates); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "cancel ad request")
		}
		if err := repo.DecrementQueuePositionsAfter(ctx, removedPos); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "renumber queue")
		}

		balance, err := s.points.Refund(ctx, tx, points.RefundInput{
			UserID:      input.UserID,
			AdRequestID: request.ID,
			Amount:      request.PricePoints,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPointsRefunded,
			AggregateType: enums.AggregatePointAccount,
			AggregateID:   input.UserID,
			Version:       1,
			Actor:         actor,
			Data: payloads.PointsRefundedEvent{
				UserID:      input.UserID,
				AdRequestID: request.ID,
				Amount:      request.PricePoints,
				Balance:     balance,
			},
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdSlotCanceled,
			AggregateType: enums.AggregateAdRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AdSlotCanceledEvent{
				AdRequestID: request.ID,
				ThemeID:     request.ThemeID,
				CanceledAt:  now,
				Refunded:    true,
			},
		}); err != nil {
			return err
		}

		result = CancelResult{ID: request.ID, RefundedPoints: request.PricePoints}
		return nil
	})
	if err != nil {
		if dbpkg.IsSerializationFailure(err) {
			return nil, apperrors.Wrap(apperrors.CodeCapacityConflict, err, "concurrent scheduler write detected")
		}
		return nil, err
	}
	return &result, nil
}

func (s *service) Get(ctx context.Context, adRequestID, userID uuid.UUID, role enums.ActorRole) (*models.AdRequest, error) {
	if adRequestID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "ad request id required")
	}
	request, err := s.repo.FindByID(ctx, adRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "ad request not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load ad request")
	}
	if request.UserID != userID && role != enums.ActorRoleAdmin {
		return nil, apperrors.New(apperrors.CodeForbidden, "ad request does not belong to user")
	}
	return request, nil
}

func (s *service) ListByStatus(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error) {
	if !status.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid status filter")
	}
	requests, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list ad requests")
	}
	return requests, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AdRequest, error) {
	if userID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "user identity missing")
	}
	requests, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "list user ad requests")
	}
	return requests, nil
}

// EstimateExposure projects impressions from the current active count. Pure
// read path, never consulted during admission writes.
func (s *service) EstimateExposure(ctx context.Context, days int) (*ExposureEstimate, error) {
	if days < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "days must not be negative")
	}
	activeCount, err := s.repo.CountActive(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "count active placements")
	}
	return &ExposureEstimate{
		ActiveCount:            int(activeCount),
		DailyCycles:            s.estimator.DailyCycles(),
		EstimatedDailyExposure: s.estimator.EstimatedDailyExposure(int(activeCount)),
		EstimatedTotalExposure: s.estimator.EstimatedTotalExposure(int(activeCount), days),
	}, nil
}

func (s *service) TrackClick(ctx context.Context, adRequestID uuid.UUID) error {
	return s.trackEvent(ctx, adRequestID, enums.AdEventFactTypeClick)
}

func (s *service) TrackExposure(ctx context.Context, adRequestID uuid.UUID) error {
	return s.trackEvent(ctx, adRequestID, enums.AdEventFactTypeExposure)
}

func (s *service) trackEvent(ctx context.Context, adRequestID uuid.UUID, factType enums.AdEventFactType) error {
	if adRequestID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "ad request id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var (
			updated bool
			err     error
		)
		if factType == enums.AdEventFactTypeClick {
			updated, err = repo.IncrementClickCount(ctx, adRequestID)
		} else {
			updated, err = repo.IncrementExposureCount(ctx, adRequestID)
		}
		if err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "increment counter")
		}
		if !updated {
			return apperrors.New(apperrors.CodeNotFound, "ad request not found")
		}

		fact := &models.AdEventFact{
			AdRequestID: adRequestID,
			Type:        factType,
			OccurredAt:  s.now().UTC(),
		}
		if err := repo.InsertEventFact(ctx, fact); err != nil {
			return apperrors.Wrap(apperrors.CodeDependency, err, "record event fact")
		}
		return nil
	})
}
