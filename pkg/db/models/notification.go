package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to a single user.
type Notification struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index:notifications_user_id_idx"`
	FromUserID *uuid.UUID                 `gorm:"column:from_user_id;type:uuid"`
	Category   enums.NotificationCategory `gorm:"column:category;type:text;not null"`
	Message    string                     `gorm:"column:message;type:text;not null"`
	ResourceID *uuid.UUID                 `gorm:"column:resource_id;type:uuid"`
	ReadAt     *time.Time                 `gorm:"column:read_at"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
