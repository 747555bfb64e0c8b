package sharing

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

// ShoppingListAudience returns the owner followed by every sharer of the list.
func (d *Directory) ShoppingListAudience(ctx context.Context, unit *uow.Unit, listID uuid.UUID) ([]uuid.UUID, error) {
	res, err := d.loadResource(ctx, unit, KindShoppingList, listID)
	if err != nil {
		return nil, err
	}
	sharers, err := d.repo.WithTx(unit.Tx()).Users(ctx, KindShoppingList, listID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load list sharers")
	}
	return append([]uuid.UUID{res.OwnerID}, sharers...), nil
}

func (d *Directory) IsMealShared(ctx context.Context, unit *uow.Unit, mealID, userID uuid.UUID) (bool, error) {
	return d.isShared(ctx, unit, KindMeal, mealID, userID)
}

func (d *Directory) IsMealPlanShared(ctx context.Context, unit *uow.Unit, planID, userID uuid.UUID) (bool, error) {
	return d.isShared(ctx, unit, KindMealPlan, planID, userID)
}

func (d *Directory) IsShoppingListShared(ctx context.Context, unit *uow.Unit, listID, userID uuid.UUID) (bool, error) {
	return d.isShared(ctx, unit, KindShoppingList, listID, userID)
}

func (d *Directory) CanViewMeal(ctx context.Context, unit *uow.Unit, mealID, viewerID uuid.UUID) (bool, error) {
	return d.canViewByID(ctx, unit, KindMeal, mealID, viewerID)
}

func (d *Directory) CanViewMealPlan(ctx context.Context, unit *uow.Unit, planID, viewerID uuid.UUID) (bool, error) {
	return d.canViewByID(ctx, unit, KindMealPlan, planID, viewerID)
}

func (d *Directory) CanViewShoppingList(ctx context.Context, unit *uow.Unit, listID, viewerID uuid.UUID) (bool, error) {
	return d.canViewByID(ctx, unit, KindShoppingList, listID, viewerID)
}

func (d *Directory) canViewByID(ctx context.Context, unit *uow.Unit, kind Kind, id, viewerID uuid.UUID) (bool, error) {
	res, err := d.loadResource(ctx, unit, kind, id)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return d.canView(ctx, unit, kind, res, viewerID)
}

// SharedWithUser returns the ids of resources of kind shared with userID.
func (d *Directory) SharedWithUser(ctx context.Context, unit *uow.Unit, kind Kind, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := d.repo.WithTx(unit.Tx()).SharedWith(ctx, kind, userID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load shared resources")
	}
	return ids, nil
}

// RevokeMeal removes every edge of the meal ahead of its deletion.
func (d *Directory) RevokeMeal(ctx context.Context, unit *uow.Unit, mealID uuid.UUID) error {
	return d.revoke(ctx, unit, KindMeal, mealID)
}

func (d *Directory) RevokeMealPlan(ctx context.Context, unit *uow.Unit, planID uuid.UUID) error {
	return d.revoke(ctx, unit, KindMealPlan, planID)
}

func (d *Directory) RevokeShoppingList(ctx context.Context, unit *uow.Unit, listID uuid.UUID) error {
	return d.revoke(ctx, unit, KindShoppingList, listID)
}

func (d *Directory) revoke(ctx context.Context, unit *uow.Unit, kind Kind, id uuid.UUID) error {
	if err := d.repo.WithTx(unit.Tx()).DeleteEdges(ctx, kind, id); err != nil {
		return pkgerrors.Internal(err, "revoke share edges")
	}
	return nil
}
