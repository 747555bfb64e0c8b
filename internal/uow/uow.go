// Package uow runs one command inside one transaction and publishes the
// realtime changes it recorded only after that transaction commits.
package uow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
)

// Unit is handed to a command for the lifetime of its transaction.
type Unit struct {
	tx         *gorm.DB
	deliveries []realtime.Delivery
}

// Tx returns the transaction every write of the command must go through.
func (u *Unit) Tx() *gorm.DB {
	return u.tx
}

// Emit records a change for the given audience. Nothing is sent until commit.
func (u *Unit) Emit(audience []uuid.UUID, event enums.EventName, changeType enums.ChangeType, data any) {
	u.deliveries = append(u.deliveries, realtime.NewDelivery(audience, realtime.Envelope{
		EventName: event,
		Data:      data,
		Type:      changeType,
	}))
}

// Deliveries returns the changes recorded so far, in emission order.
func (u *Unit) Deliveries() []realtime.Delivery {
	return append([]realtime.Delivery(nil), u.deliveries...)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Runner opens units of work.
type Runner struct {
	db        txRunner
	publisher realtime.Publisher
	logg      *logger.Logger
}

func NewRunner(db txRunner, publisher realtime.Publisher, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "realtime publisher required")
	}
	return &Runner{db: db, publisher: publisher, logg: logg}, nil
}

// Do commits once when fn succeeds and rolls back on any error or panic. A
// rolled-back unit broadcasts nothing. Broadcast failures after commit are
// logged, never returned: the write already happened.
func (r *Runner) Do(ctx context.Context, fn func(*Unit) error) error {
	unit := &Unit{}
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		unit.tx = tx
		return fn(unit)
	})
	if err != nil {
		return pkgerrors.Passthrough(err, "commit unit of work")
	}

	if len(unit.deliveries) == 0 {
		return nil
	}
	if err := r.publisher.Broadcast(ctx, unit.deliveries); err != nil && r.logg != nil {
		r.logg.Error(r.logg.WithField(ctx, "deliveries", len(unit.deliveries)), "broadcast committed changes", fmt.Errorf("realtime: %w", err))
	}
	return nil
}
