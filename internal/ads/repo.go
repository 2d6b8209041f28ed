package ads

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
	"github.com/themelab-io/themeboard-backend/pkg/pagination"
)

// schedulerLockID is the advisory lock namespace shared by every writer that
// touches slot occupancy or queue ordering. All of them must take it before
// reading the active count, or two concurrent admissions could both observe a
// free slot.
const schedulerLockID int64 = 0x7B0A5107

type repository struct {
	db *gorm.DB
}

// NewRepository builds an ad request repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockScheduler serializes slot admission, promotion, and cancellation inside
// the current transaction. The lock releases automatically at commit or
// rollback. Non-Postgres dialects (sqlite in tests) have no advisory locks and
// run single-writer anyway, so the call is a no-op there.
func (r *repository) LockScheduler(ctx context.Context) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", schedulerLockID).Error
}

func (r *repository) Create(ctx context.Context, request *models.AdRequest) (*models.AdRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AdRequest, error) {
	var request models.AdRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindLiveByTheme(ctx context.Context, themeID uuid.UUID) (*models.AdRequest, error) {
	var request models.AdRequest
	err := r.db.WithContext(ctx).
		Where("theme_id = ? AND status IN ?", themeID, []enums.AdRequestStatus{
			enums.AdRequestStatusActive,
			enums.AdRequestStatusPendingQueue,
		}).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AdRequest{}).
		Where("status = ?", enums.AdRequestStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) CountQueued(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AdRequest{}).
		Where("status = ?", enums.AdRequestStatusPendingQueue).
		Count(&count).Error
	return count, err
}

func (r *repository) MaxDisplayOrder(ctx context.Context) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.AdRequest{}).
		Where("status = ?", enums.AdRequestStatusActive).
		Select("COALESCE(MAX(display_order), 0)").
		Scan(&max).Error
	return max, err
}

func (r *repository) MaxQueuePosition(ctx context.Context) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.AdRequest{}).
		Where("status = ?", enums.AdRequestStatusPendingQueue).
		Select("COALESCE(MAX(queue_position), 0)").
		Scan(&max).Error
	return max, err
}

// QueueHead returns the pending request with the lowest queue position, or
// gorm.ErrRecordNotFound when the queue is empty.
func (r *repository) QueueHead(ctx context.Context) (*models.AdRequest, error) {
	var request models.AdRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.AdRequestStatusPendingQueue).
		Order("queue_position ASC").
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.AdRequest, error) {
	var requests []models.AdRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.AdRequestStatusActive).
		Order("display_order ASC").
		Find(&requests).Error
	return requests, err
}

func (r *repository) ListQueued(ctx context.Context) ([]models.AdRequest, error) {
	var requests []models.AdRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.AdRequestStatusPendingQueue).
		Order("queue_position ASC").
		Find(&requests).Error
	return requests, err
}

func (r *repository) ListExpiredActive(ctx context.Context, cutoff time.Time) ([]models.AdRequest, error) {
	var requests []models.AdRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.AdRequestStatusActive, cutoff).
		Order("expires_at ASC").
		Find(&requests).Error
	return requests, err
}

func (r *repository) ListByStatus(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error) {
	query := r.db.WithContext(ctx).Where("status = ?", status).Limit(pagination.NormalizeLimit(limit))
	switch status {
	case enums.AdRequestStatusActive:
		query = query.Order("display_order ASC")
	case enums.AdRequestStatusPendingQueue:
		query = query.Order("queue_position ASC")
	default:
		query = query.Order("updated_at DESC")
	}
	var requests []models.AdRequest
	err := query.Find(&requests).Error
	return requests, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AdRequest, error) {
	var requests []models.AdRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&requests).Error
	return requests, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.AdRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DecrementQueuePositionsAfter closes the gap left by a removed queue entry so
// positions stay contiguous from 1.
func (r *repository) DecrementQueuePositionsAfter(ctx context.Context, position int) error {
	return r.db.WithContext(ctx).Model(&models.AdRequest{}).
		Where("status = ? AND queue_position > ?", enums.AdRequestStatusPendingQueue, position).
		Update("queue_position", gorm.Expr("queue_position - 1")).Error
}

func (r *repository) IncrementClickCount(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.incrementCounter(ctx, id, "click_count")
}

func (r *repository) IncrementExposureCount(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.incrementCounter(ctx, id, "exposure_count")
}

func (r *repository) incrementCounter(ctx context.Context, id uuid.UUID, column string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AdRequest{}).
		Where("id = ?", id).
		Update(column, gorm.Expr(column+" + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) InsertEventFact(ctx context.Context, fact *models.AdEventFact) error {
	return r.db.WithContext(ctx).Create(fact).Error
}
