package models

import (
	"time"

	"github.com/google/uuid"
)

// PointAccount tracks the spendable point balance for a user.
type PointAccount struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance   int64     `gorm:"column:balance;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
