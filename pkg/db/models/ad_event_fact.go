package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/themelab-io/themeboard-backend/pkg/enums"
)

// AdEventFact is an append-only engagement fact (exposure or click).
type AdEventFact struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AdRequestID uuid.UUID             `gorm:"column:ad_request_id;type:uuid;not null"`
	Type        enums.AdEventFactType `gorm:"column:type;type:ad_event_fact_type;not null"`
	OccurredAt  time.Time             `gorm:"column:occurred_at;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
