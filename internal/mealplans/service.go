// Package mealplans aggregates meals into plans and keeps each plan's shopping
// lists in step with its membership.
package mealplans

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/pagination"
	"github.com/angelmondragon/mealshare-backend/pkg/visibility"
)

const (
	planResource = "meal plan"
	mealResource = "meal"
)

// Materializer derives shopping-list items from plan membership.
type Materializer interface {
	CreatePlanLists(ctx context.Context, unit *uow.Unit, plan *models.MealPlan, withSubList bool) ([]models.ShoppingList, error)
	MaterializeMeal(ctx context.Context, unit *uow.Unit, plan models.MealPlan, meal models.Meal, multiplier int) ([]models.ShoppingListItem, error)
	RemoveMeal(ctx context.Context, unit *uow.Unit, plan models.MealPlan, meal models.Meal) ([]models.ShoppingListItem, error)
	SetInstanceMultiplier(ctx context.Context, unit *uow.Unit, plan models.MealPlan, meal models.Meal, multiplier int) ([]models.ShoppingListItem, error)
	OnMealPlanRenamed(ctx context.Context, unit *uow.Unit, plan models.MealPlan, newName string) ([]models.ShoppingList, error)
	OnMealPlanDeleted(ctx context.Context, unit *uow.Unit, plan models.MealPlan) error
}

// Access answers plan and meal visibility and clears plan sharing edges.
type Access interface {
	IsMealPlanShared(ctx context.Context, unit *uow.Unit, planID, userID uuid.UUID) (bool, error)
	IsMealShared(ctx context.Context, unit *uow.Unit, mealID, userID uuid.UUID) (bool, error)
	RevokeMealPlan(ctx context.Context, unit *uow.Unit, planID uuid.UUID) error
}

type Service interface {
	CreateMealPlan(ctx context.Context, ownerID uuid.UUID, input CreateMealPlanInput) (*MealPlanDTO, error)
	GetMealPlan(ctx context.Context, viewerID, planID uuid.UUID) (*MealPlanDTO, error)
	ListMealPlans(ctx context.Context, viewerID uuid.UUID, params pagination.Params) (*pagination.Page[MealPlanDTO], error)
	RenameMealPlan(ctx context.Context, actorID, planID uuid.UUID, name string) (*MealPlanDTO, error)
	DeleteMealPlan(ctx context.Context, actorID, planID uuid.UUID) error
	AddMealToPlan(ctx context.Context, actorID, planID, mealID uuid.UUID, multiplier int) (*Member, error)
	RemoveMealFromPlan(ctx context.Context, actorID, planID, mealID uuid.UUID) error
	SetMealMultiplier(ctx context.Context, actorID, planID, mealID uuid.UUID, multiplier int) (*Member, error)
}

type CreateMealPlanInput struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	WithSubList bool   `json:"with_sub_list"`
}

type ServiceParams struct {
	Runner       *uow.Runner
	Repo         *Repository
	Materializer Materializer
	Access       Access
	Logger       *logger.Logger
}

type service struct {
	runner       *uow.Runner
	repo         *Repository
	materializer Materializer
	access       Access
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "unit of work runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "meal plan repository required")
	}
	if params.Materializer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materializer required")
	}
	if params.Access == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "meal plan access required")
	}
	return &service{
		runner:       params.Runner,
		repo:         params.Repo,
		materializer: params.Materializer,
		access:       params.Access,
		logg:         params.Logger,
	}, nil
}

func (s *service) CreateMealPlan(ctx context.Context, ownerID uuid.UUID, input CreateMealPlanInput) (*MealPlanDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Validationf("meal plan name is required")
	}

	// the id is fixed up front so the lists can point back at the plan
	plan := models.MealPlan{ID: uuid.New(), OwnerID: ownerID, Name: name}
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		if _, err := s.materializer.CreatePlanLists(ctx, unit, &plan, input.WithSubList); err != nil {
			return err
		}
		if err := s.repo.WithTx(unit.Tx()).CreatePlan(ctx, &plan); err != nil {
			return pkgerrors.Internal(err, "create meal plan")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logCommitted(ctx, "meal plan created", plan.ID, ownerID)
	dto := FromModel(plan, nil)
	return &dto, nil
}

func (s *service) GetMealPlan(ctx context.Context, viewerID, planID uuid.UUID) (*MealPlanDTO, error) {
	var dto MealPlanDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		plan, err := s.loadPlan(ctx, unit, viewerID, planID, false)
		if err != nil {
			return err
		}
		members, err := s.repo.WithTx(unit.Tx()).Members(ctx, planID)
		if err != nil {
			return pkgerrors.Internal(err, "load plan meals")
		}
		dto = FromModel(*plan, members)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) ListMealPlans(ctx context.Context, viewerID uuid.UUID, params pagination.Params) (*pagination.Page[MealPlanDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListPlans(ctx, listPlansParams{
		ViewerID: viewerID,
		Limit:    pagination.LimitWithBuffer(params.Limit),
		Cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list meal plans")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(p models.MealPlan) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	items := make([]MealPlanDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row, nil))
	}
	return &pagination.Page[MealPlanDTO]{Items: items, Cursor: next}, nil
}

func (s *service) RenameMealPlan(ctx context.Context, actorID, planID uuid.UUID, name string) (*MealPlanDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.Validationf("meal plan name is required")
	}

	var dto MealPlanDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		plan, err := s.loadPlan(ctx, unit, actorID, planID, true)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(unit.Tx())
		if err := repo.RenamePlan(ctx, planID, name); err != nil {
			return pkgerrors.Internal(err, "rename meal plan")
		}
		if _, err := s.materializer.OnMealPlanRenamed(ctx, unit, *plan, name); err != nil {
			return err
		}
		plan.Name = name
		members, err := repo.Members(ctx, planID)
		if err != nil {
			return pkgerrors.Internal(err, "load plan meals")
		}
		dto = FromModel(*plan, members)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) DeleteMealPlan(ctx context.Context, actorID, planID uuid.UUID) error {
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		plan, err := s.loadPlan(ctx, unit, actorID, planID, true)
		if err != nil {
			return err
		}
		if err := s.materializer.OnMealPlanDeleted(ctx, unit, *plan); err != nil {
			return err
		}
		if err := s.access.RevokeMealPlan(ctx, unit, planID); err != nil {
			return pkgerrors.Passthrough(err, "revoke meal plan shares")
		}
		repo := s.repo.WithTx(unit.Tx())
		if err := repo.DeleteMembers(ctx, planID); err != nil {
			return pkgerrors.Internal(err, "delete plan meals")
		}
		if err := repo.DeletePlan(ctx, planID); err != nil {
			return pkgerrors.Internal(err, "delete meal plan")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logCommitted(ctx, "meal plan deleted", planID, actorID)
	return nil
}

func (s *service) AddMealToPlan(ctx context.Context, actorID, planID, mealID uuid.UUID, multiplier int) (*Member, error) {
	if multiplier == 0 {
		multiplier = 1
	}
	if multiplier < 1 {
		return nil, pkgerrors.Validationf("multiplier must be at least 1")
	}

	var member Member
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		plan, err := s.loadPlan(ctx, unit, actorID, planID, false)
		if err != nil {
			return err
		}
		meal, err := s.loadMeal(ctx, unit, actorID, mealID)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(unit.Tx())
		if _, err := repo.FindMember(ctx, planID, mealID); err == nil {
			return pkgerrors.Conflictf("meal is already in the plan")
		} else if !db.IsNotFound(err) {
			return pkgerrors.Internal(err, "load plan meal")
		}

		row := models.MealPlanMeal{MealPlanID: planID, MealID: mealID, Multiplier: multiplier}
		if err := repo.CreateMember(ctx, &row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Conflictf("meal is already in the plan")
			}
			return pkgerrors.Internal(err, "add meal to plan")
		}
		if _, err := s.materializer.MaterializeMeal(ctx, unit, *plan, *meal, multiplier); err != nil {
			return err
		}
		member = Member{MealID: mealID, Name: meal.Name, Multiplier: multiplier, CreatedAt: row.CreatedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *service) RemoveMealFromPlan(ctx context.Context, actorID, planID, mealID uuid.UUID) error {
	return s.runner.Do(ctx, func(unit *uow.Unit) error {
		plan, err := s.loadPlan(ctx, unit, actorID, planID, false)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(unit.Tx())
		row, err := repo.FindMember(ctx, planID, mealID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.NotFoundf("meal is not in the plan")
			}
			return pkgerrors.Internal(err, "load plan meal")
		}
		meal, err := repo.FindMeal(ctx, mealID)
		if err != nil {
			return pkgerrors.Internal(err, "load meal")
		}
		return s.detach(ctx, unit, *plan, *row, *meal)
	})
}

func (s *service) SetMealMultiplier(ctx context.Context, actorID, planID, mealID uuid.UUID, multiplier int) (*Member, error) {
	if multiplier < 1 {
		return nil, pkgerrors.Validationf("multiplier must be at least 1")
	}

	var member Member
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		plan, err := s.loadPlan(ctx, unit, actorID, planID, false)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(unit.Tx())
		row, err := repo.FindMember(ctx, planID, mealID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.NotFoundf("meal is not in the plan")
			}
			return pkgerrors.Internal(err, "load plan meal")
		}
		meal, err := repo.FindMeal(ctx, mealID)
		if err != nil {
			return pkgerrors.Internal(err, "load meal")
		}
		if err := repo.UpdateMemberMultiplier(ctx, row.ID, multiplier); err != nil {
			return pkgerrors.Internal(err, "update plan meal")
		}
		if _, err := s.materializer.SetInstanceMultiplier(ctx, unit, *plan, *meal, multiplier); err != nil {
			return err
		}
		member = Member{MealID: mealID, Name: meal.Name, Multiplier: multiplier, CreatedAt: row.CreatedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *service) detach(ctx context.Context, unit *uow.Unit, plan models.MealPlan, row models.MealPlanMeal, meal models.Meal) error {
	if _, err := s.materializer.RemoveMeal(ctx, unit, plan, meal); err != nil {
		return err
	}
	if err := s.repo.WithTx(unit.Tx()).DeleteMember(ctx, row.ID); err != nil {
		return pkgerrors.Internal(err, "remove meal from plan")
	}
	return nil
}

func (s *service) loadPlan(ctx context.Context, unit *uow.Unit, actorID, planID uuid.UUID, ownerOnly bool) (*models.MealPlan, error) {
	plan, err := s.repo.WithTx(unit.Tx()).FindPlan(ctx, planID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("%s not found", planResource)
		}
		return nil, pkgerrors.Internal(err, "load meal plan")
	}
	shared := false
	if plan.OwnerID != actorID {
		shared, err = s.access.IsMealPlanShared(ctx, unit, planID, actorID)
		if err != nil {
			return nil, pkgerrors.Passthrough(err, "check meal plan share")
		}
	}
	input := visibility.Input{Resource: planResource, OwnerID: plan.OwnerID, ViewerID: actorID, Shared: shared}
	if ownerOnly {
		err = visibility.EnsureOwner(input)
	} else {
		err = visibility.EnsureVisible(input)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *service) loadMeal(ctx context.Context, unit *uow.Unit, actorID, mealID uuid.UUID) (*models.Meal, error) {
	meal, err := s.repo.WithTx(unit.Tx()).FindMeal(ctx, mealID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("%s not found", mealResource)
		}
		return nil, pkgerrors.Internal(err, "load meal")
	}
	shared := false
	if meal.OwnerID != actorID {
		shared, err = s.access.IsMealShared(ctx, unit, mealID, actorID)
		if err != nil {
			return nil, pkgerrors.Passthrough(err, "check meal share")
		}
	}
	if err := visibility.EnsureVisible(visibility.Input{
		Resource: mealResource,
		OwnerID:  meal.OwnerID,
		ViewerID: actorID,
		Shared:   shared,
	}); err != nil {
		return nil, err
	}
	return meal, nil
}

func (s *service) logCommitted(ctx context.Context, msg string, planID, actorID uuid.UUID) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithPlanID(ctx, planID.String())
	s.logg.Info(s.logg.WithUserID(logCtx, actorID.String()), msg)
}
