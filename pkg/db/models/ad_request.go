package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/themelab-io/themeboard-backend/pkg/enums"
)

// AdRequest represents one paid placement request for a theme.
//
// QueuePosition is set only while the request is pending_queue and stays
// contiguous from 1. DisplayOrder is set only while the request is active and
// fixes its rotation order on the board. StartedAt + duration determines
// ExpiresAt at activation time, not at submission, so queued requests never
// burn paid days while waiting.
type AdRequest struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ThemeID       uuid.UUID             `gorm:"column:theme_id;type:uuid;not null"`
	UserID        uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	Status        enums.AdRequestStatus `gorm:"column:status;type:ad_request_status;not null;default:'pending_queue'"`
	QueuePosition *int                  `gorm:"column:queue_position"`
	DisplayOrder  *int                  `gorm:"column:display_order"`
	DurationDays  int                   `gorm:"column:duration_days;not null"`
	RemainingDays int                   `gorm:"column:remaining_days;not null;default:0"`
	PricePoints   int64                 `gorm:"column:price_points;not null"`
	ClickCount    int64                 `gorm:"column:click_count;not null;default:0"`
	ExposureCount int64                 `gorm:"column:exposure_count;not null;default:0"`
	RequestedAt   time.Time             `gorm:"column:requested_at;not null"`
	StartedAt     *time.Time            `gorm:"column:started_at"`
	ExpiresAt     *time.Time            `gorm:"column:expires_at"`
	CanceledAt    *time.Time            `gorm:"column:canceled_at"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
