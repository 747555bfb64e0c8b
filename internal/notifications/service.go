package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

// Notifier records a notification in the caller's unit of work and queues the
// matching realtime event for its recipient.
type Notifier interface {
	Notify(ctx context.Context, unit *uow.Unit, input NotifyInput) (*DTO, error)
}

type NotifyInput struct {
	UserID     uuid.UUID
	FromUserID *uuid.UUID
	Category   enums.NotificationCategory
	Message    string
	ResourceID *uuid.UUID
}

// DTO is the notification shape carried by realtime events.
type DTO struct {
	ID         uuid.UUID                  `json:"id"`
	UserID     uuid.UUID                  `json:"user_id"`
	FromUserID *uuid.UUID                 `json:"from_user_id,omitempty"`
	Category   enums.NotificationCategory `json:"category"`
	Message    string                     `json:"message"`
	ResourceID *uuid.UUID                 `json:"resource_id,omitempty"`
	ReadAt     *time.Time                 `json:"read_at,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}

func FromModel(n models.Notification) DTO {
	return DTO{
		ID:         n.ID,
		UserID:     n.UserID,
		FromUserID: n.FromUserID,
		Category:   n.Category,
		Message:    n.Message,
		ResourceID: n.ResourceID,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

type notifier struct {
	repo Repository
}

// NewNotifier wires notification dependencies.
func NewNotifier(repo Repository) (Notifier, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &notifier{repo: repo}, nil
}

func (n *notifier) Notify(ctx context.Context, unit *uow.Unit, input NotifyInput) (*DTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.Validationf("notification recipient required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.Validationf("invalid notification category %q", input.Category)
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, pkgerrors.Validationf("notification message required")
	}

	row := models.Notification{
		UserID:     input.UserID,
		FromUserID: input.FromUserID,
		Category:   input.Category,
		Message:    message,
		ResourceID: input.ResourceID,
	}
	if err := n.repo.WithTx(unit.Tx()).Create(ctx, &row); err != nil {
		return nil, pkgerrors.Internal(err, "create notification")
	}

	dto := FromModel(row)
	unit.Emit([]uuid.UUID{input.UserID}, enums.EventNotification, enums.ChangeTypeAdd, dto)
	return &dto, nil
}
