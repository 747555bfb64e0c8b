package realtime

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/pkg/enums"
)

// Envelope is the frame clients receive.
type Envelope struct {
	EventName enums.EventName  `json:"event_name"`
	Data      any              `json:"data"`
	Type      enums.ChangeType `json:"type"`
}

// Delivery binds an envelope to the users allowed to see it. The audience is
// resolved when the change is recorded, inside the writing transaction.
type Delivery struct {
	UserIDs  []uuid.UUID `json:"user_ids"`
	Envelope Envelope    `json:"envelope"`
}

// NewDelivery deduplicates the audience and drops nil ids.
func NewDelivery(audience []uuid.UUID, env Envelope) Delivery {
	seen := make(map[uuid.UUID]struct{}, len(audience))
	users := make([]uuid.UUID, 0, len(audience))
	for _, id := range audience {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	return Delivery{UserIDs: users, Envelope: env}
}
