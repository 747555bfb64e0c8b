package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendRequest is a pending, directed request.
type FriendRequest struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FromUserID uuid.UUID `gorm:"column:from_user_id;type:uuid;not null;uniqueIndex:friend_requests_from_to_key"`
	ToUserID   uuid.UUID `gorm:"column:to_user_id;type:uuid;not null;uniqueIndex:friend_requests_from_to_key;index:friend_requests_to_user_id_idx"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *FriendRequest) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// Friendship is stored once per direction.
type Friendship struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:friendships_user_friend_key"`
	FriendID  uuid.UUID `gorm:"column:friend_id;type:uuid;not null;uniqueIndex:friendships_user_friend_key"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (f *Friendship) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}
