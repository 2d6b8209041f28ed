package ads

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
)

// Repository defines persistence operations for ad placement requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockScheduler(ctx context.Context) error
	Create(ctx context.Context, request *models.AdRequest) (*models.AdRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.AdRequest, error)
	FindLiveByTheme(ctx context.Context, themeID uuid.UUID) (*models.AdRequest, error)
	CountActive(ctx context.Context) (int64, error)
	CountQueued(ctx context.Context) (int64, error)
	MaxDisplayOrder(ctx context.Context) (int, error)
	MaxQueuePosition(ctx context.Context) (int, error)
	QueueHead(ctx context.Context) (*models.AdRequest, error)
	ListActive(ctx context.Context) ([]models.AdRequest, error)
	ListQueued(ctx context.Context) ([]models.AdRequest, error)
	ListExpiredActive(ctx context.Context, cutoff time.Time) ([]models.AdRequest, error)
	ListByStatus(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AdRequest, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DecrementQueuePositionsAfter(ctx context.Context, position int) error
	IncrementClickCount(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementExposureCount(ctx context.Context, id uuid.UUID) (bool, error)
	InsertEventFact(ctx context.Context, fact *models.AdEventFact) error
}
