package friends

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
)

// Repository stores pending requests and the two-row friendship edges.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) RequestExists(ctx context.Context, fromID, toID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("from_user_id = ? AND to_user_id = ?", fromID, toID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) CreateRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&models.FriendRequest{FromUserID: fromID, ToUserID: toID}).Error
}

// DeleteRequest reports how many rows were removed.
func (r *Repository) DeleteRequest(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", fromID, toID).
		Delete(&models.FriendRequest{})
	return res.RowsAffected, res.Error
}

func (r *Repository) AreFriends(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&n).Error
	return n > 0, err
}

// CreateFriendship writes both directions.
func (r *Repository) CreateFriendship(ctx context.Context, a, b uuid.UUID) error {
	rows := []models.Friendship{{UserID: a, FriendID: b}, {UserID: b, FriendID: a}}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *Repository) DeleteFriendship(ctx context.Context, a, b uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Delete(&models.Friendship{})
	return res.RowsAffected, res.Error
}

func (r *Repository) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error
	return ids, err
}

func (r *Repository) IncomingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("to_user_id = ?", userID).
		Pluck("from_user_id", &ids).Error
	return ids, err
}

func (r *Repository) OutgoingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("from_user_id = ?", userID).
		Pluck("to_user_id", &ids).Error
	return ids, err
}
