package ads

import (
	"time"

	"github.com/google/uuid"

	"github.com/themelab-io/themeboard-backend/pkg/enums"
)

// SubmitInput carries everything the admission path needs to place a request.
type SubmitInput struct {
	ThemeID      uuid.UUID
	UserID       uuid.UUID
	DurationDays int
	ActorRole    enums.ActorRole
}

// SubmitResult reports where the request landed after admission.
type SubmitResult struct {
	ID                     uuid.UUID             `json:"id"`
	Status                 enums.AdRequestStatus `json:"status"`
	QueuePosition          *int                  `json:"queue_position,omitempty"`
	ExpiresAt              *time.Time            `json:"expires_at,omitempty"`
	PricePoints            int64                 `json:"price_points"`
	EstimatedDailyExposure int                   `json:"estimated_daily_exposure"`
}

// CancelInput identifies the queued request an owner wants to withdraw.
type CancelInput struct {
	AdRequestID uuid.UUID
	UserID      uuid.UUID
	ActorRole   enums.ActorRole
}

// CancelResult reports the refunded amount after a successful withdrawal.
type CancelResult struct {
	ID             uuid.UUID `json:"id"`
	RefundedPoints int64     `json:"refunded_points"`
}

// ExposureEstimate is the read-only projection returned by the exposure endpoint.
type ExposureEstimate struct {
	ActiveCount            int `json:"active_count"`
	DailyCycles            int `json:"daily_cycles"`
	EstimatedDailyExposure int `json:"estimated_daily_exposure"`
	EstimatedTotalExposure int `json:"estimated_total_exposure"`
}
