package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/themelab-io/themeboard-backend/pkg/enums"
)

// PointEntry records an immutable point movement tied to an ad request.
type PointEntry struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	AdRequestID *uuid.UUID           `gorm:"column:ad_request_id;type:uuid"`
	Type        enums.PointEntryType `gorm:"column:type;type:point_entry_type;not null"`
	Amount      int64                `gorm:"column:amount;not null"`
	Metadata    json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}
