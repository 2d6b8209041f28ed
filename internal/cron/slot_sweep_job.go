package cron

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/internal/ads"
	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
	"github.com/themelab-io/themeboard-backend/pkg/logger"
	"github.com/themelab-io/themeboard-backend/pkg/metrics"
	"github.com/themelab-io/themeboard-backend/pkg/outbox"
	"github.com/themelab-io/themeboard-backend/pkg/outbox/payloads"
)

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type adRequestReader interface {
	ListExpiredActive(ctx context.Context, cutoff time.Time) ([]models.AdRequest, error)
	ListActive(ctx context.Context) ([]models.AdRequest, error)
	CountActive(ctx context.Context) (int64, error)
	CountQueued(ctx context.Context) (int64, error)
}

type schedulerRepo interface {
	LockScheduler(ctx context.Context) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AdRequest, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	QueueHead(ctx context.Context) (*models.AdRequest, error)
	MaxDisplayOrder(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int64, error)
	DecrementQueuePositionsAfter(ctx context.Context, position int) error
}

type schedulerRepoFactory func(tx *gorm.DB) schedulerRepo

func defaultSchedulerRepo(tx *gorm.DB) schedulerRepo {
	return ads.NewRepository(tx)
}

// SlotSweepJobParams configure the expiration sweeper.
type SlotSweepJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Reader       adRequestReader
	Outbox       outboxEmitter
	Metrics      *metrics.SlotMetrics
	SlotCapacity int
	RepoFactory  schedulerRepoFactory
}

// NewSlotSweepJob builds the cron job that expires elapsed placements and
// promotes queued requests into freed slots.
func NewSlotSweepJob(params SlotSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("ad request reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.SlotCapacity <= 0 {
		return nil, fmt.Errorf("slot capacity must be positive")
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultSchedulerRepo
	}
	return &slotSweepJob{
		logg:        params.Logger,
		db:          params.DB,
		reader:      params.Reader,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		capacity:    params.SlotCapacity,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type slotSweepJob struct {
	logg        *logger.Logger
	db          txRunner
	reader      adRequestReader
	outbox      outboxEmitter
	metrics     *metrics.SlotMetrics
	capacity    int
	repoFactory schedulerRepoFactory
	now         func() time.Time
}

func (j *slotSweepJob) Name() string { return "slot-sweep" }

func (j *slotSweepJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.expireElapsed(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.promoteQueued(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.refreshRemainingDays(ctx); err != nil {
		errs = append(errs, err)
	}
	j.publishOccupancy(ctx)
	return multierr.Combine(errs...)
}

// expireElapsed retires every active placement whose paid interval has
// passed. Each row gets its own transaction so one poisoned row cannot block
// the rest of the sweep.
func (j *slotSweepJob) expireElapsed(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.reader.ListExpiredActive(ctx, now)
	if err != nil {
		return fmt.Errorf("query expired placements: %w", err)
	}
	var errs []error
	count := 0
	for _, request := range expired {
		if err := j.expireOne(ctx, request.ID); err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", request.ID, err))
			continue
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "expiration loop complete")
	return multierr.Combine(errs...)
}

func (j *slotSweepJob) expireOne(ctx context.Context, id uuid.UUID) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		if err := repo.LockScheduler(ctx); err != nil {
			return err
		}
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := j.now().UTC()
		if current.Status != enums.AdRequestStatusActive || current.ExpiresAt == nil || current.ExpiresAt.After(now) {
			return nil
		}
		updates := map[string]any{
			"status":         enums.AdRequestStatusExpired,
			"remaining_days": 0,
		}
		if err := repo.Update(ctx, current.ID, updates); err != nil {
			return err
		}
		if j.metrics != nil {
			j.metrics.IncExpirations(1)
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdSlotExpired,
			AggregateType: enums.AggregateAdRequest,
			AggregateID:   current.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.AdSlotExpiredEvent{
				AdRequestID:  current.ID,
				ThemeID:      current.ThemeID,
				DisplayOrder: derefInt(current.DisplayOrder),
				ExpiredAt:    *current.ExpiresAt,
			},
		})
	})
}

// promoteQueued backfills freed slots from the queue head, FIFO, until the
// board is full or the queue is empty. Runs under the scheduler lock so it
// never races admissions.
func (j *slotSweepJob) promoteQueued(ctx context.Context) error {
	promoted := 0
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		if err := repo.LockScheduler(ctx); err != nil {
			return err
		}
		for {
			activeCount, err := repo.CountActive(ctx)
			if err != nil {
				return err
			}
			if activeCount >= int64(j.capacity) {
				return nil
			}
			head, err := repo.QueueHead(ctx)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			if err := j.promoteOne(ctx, tx, repo, head); err != nil {
				return err
			}
			promoted++
		}
	})
	if promoted > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{"count": promoted})
		j.logg.Info(logCtx, "queued placements promoted")
	}
	return err
}

func (j *slotSweepJob) promoteOne(ctx context.Context, tx *gorm.DB, repo schedulerRepo, head *models.AdRequest) error {
	maxOrder, err := repo.MaxDisplayOrder(ctx)
	if err != nil {
		return err
	}
	order := maxOrder + 1
	now := j.now().UTC()
	expiresAt := now.Add(time.Duration(head.DurationDays) * 24 * time.Hour)
	headPos := derefInt(head.QueuePosition)
	updates := map[string]any{
		"status":         enums.AdRequestStatusActive,
		"queue_position": nil,
		"display_order":  order,
		"started_at":     now,
		"expires_at":     expiresAt,
		"remaining_days": head.DurationDays,
	}
	if err := repo.Update(ctx, head.ID, updates); err != nil {
		return err
	}
	if err := repo.DecrementQueuePositionsAfter(ctx, headPos); err != nil {
		return err
	}
	if j.metrics != nil {
		j.metrics.IncPromotions(1)
	}
	return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAdSlotActivated,
		AggregateType: enums.AggregateAdRequest,
		AggregateID:   head.ID,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.AdSlotActivatedEvent{
			AdRequestID:  head.ID,
			ThemeID:      head.ThemeID,
			DisplayOrder: order,
			StartedAt:    now,
			ExpiresAt:    expiresAt,
		},
	})
}

// refreshRemainingDays keeps the denormalized countdown in step with the
// wall clock for reporting surfaces.
func (j *slotSweepJob) refreshRemainingDays(ctx context.Context) error {
	active, err := j.reader.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("query active placements: %w", err)
	}
	now := j.now().UTC()
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		for _, request := range active {
			if request.ExpiresAt == nil {
				continue
			}
			remaining := remainingDays(now, *request.ExpiresAt)
			if remaining == request.RemainingDays {
				continue
			}
			if err := repo.Update(ctx, request.ID, map[string]any{"remaining_days": remaining}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *slotSweepJob) publishOccupancy(ctx context.Context) {
	if j.metrics == nil {
		return
	}
	active, err := j.reader.CountActive(ctx)
	if err != nil {
		j.logg.Error(ctx, "count active placements", err)
		return
	}
	queued, err := j.reader.CountQueued(ctx)
	if err != nil {
		j.logg.Error(ctx, "count queued placements", err)
		return
	}
	j.metrics.SetOccupancy(int(active), int(queued))
}

func remainingDays(now, expiresAt time.Time) int {
	if !expiresAt.After(now) {
		return 0
	}
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
