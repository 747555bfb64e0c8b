package mealplans

import (
	"context"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

// Detacher removes a meal from every plan that contains it. Recipes calls it
// before deleting a meal.
type Detacher struct {
	svc *service
}

func NewDetacher(repo *Repository, materializer Materializer) (*Detacher, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "meal plan repository required")
	}
	if materializer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materializer required")
	}
	return &Detacher{svc: &service{repo: repo, materializer: materializer}}, nil
}

func (d *Detacher) DetachMealEverywhere(ctx context.Context, unit *uow.Unit, meal models.Meal) error {
	repo := d.svc.repo.WithTx(unit.Tx())
	rows, err := repo.MembershipsForMeal(ctx, meal.ID)
	if err != nil {
		return pkgerrors.Internal(err, "load meal memberships")
	}
	for _, row := range rows {
		plan, err := repo.FindPlan(ctx, row.MealPlanID)
		if err != nil {
			return pkgerrors.Internal(err, "load meal plan")
		}
		if err := d.svc.detach(ctx, unit, *plan, row, meal); err != nil {
			return err
		}
	}
	return nil
}
