package shoppinglists

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/visibility"
)

const resourceName = "shopping list"

// Service exposes the direct shopping-list commands. Derived items are written
// by the Materializer; everything here is a manual edit.
type Service interface {
	CreateList(ctx context.Context, ownerID uuid.UUID, input CreateListInput) (*ListDTO, error)
	GetList(ctx context.Context, viewerID, listID uuid.UUID) (*ListDTO, error)
	AddItem(ctx context.Context, actorID, listID uuid.UUID, input ItemInput) (*ItemDTO, error)
	AddItems(ctx context.Context, actorID, listID uuid.UUID, inputs []ItemInput) ([]ItemDTO, error)
	UpdateItem(ctx context.Context, actorID, listID, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	SetObtained(ctx context.Context, actorID, listID, itemID uuid.UUID, obtained bool) (*ItemDTO, error)
	DeleteItem(ctx context.Context, actorID, listID, itemID uuid.UUID) error
	DeleteList(ctx context.Context, actorID, listID uuid.UUID) error
}

type CreateListInput struct {
	Name string `json:"name" validate:"notblank,max=200"`
}

type ItemInput struct {
	Name       string `json:"name" validate:"notblank,max=200"`
	Amount     string `json:"amount" validate:"max=50"`
	Unit       string `json:"unit" validate:"max=50"`
	Category   string `json:"category" validate:"max=100"`
	Multiplier int    `json:"multiplier" validate:"gte=0"`
	MealName   string `json:"meal_name" validate:"max=200"`
}

// UpdateItemInput is a patch; nil fields are left alone.
type UpdateItemInput struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=200"`
	Amount     *string `json:"amount" validate:"omitempty,max=50"`
	Unit       *string `json:"unit" validate:"omitempty,max=50"`
	Category   *string `json:"category" validate:"omitempty,max=100"`
	Multiplier *int    `json:"multiplier" validate:"omitempty,gte=1"`
	Obtained   *bool   `json:"obtained"`
}

type ServiceParams struct {
	Runner       *uow.Runner
	Repo         *Repository
	Materializer *Materializer
	Audience     AudienceResolver
	Logger       *logger.Logger
}

type service struct {
	runner       *uow.Runner
	repo         *Repository
	materializer *Materializer
	audience     AudienceResolver
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "unit of work runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shopping list repository required")
	}
	if params.Materializer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materializer required")
	}
	if params.Audience == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audience resolver required")
	}
	return &service{
		runner:       params.Runner,
		repo:         params.Repo,
		materializer: params.Materializer,
		audience:     params.Audience,
		logg:         params.Logger,
	}, nil
}

func (s *service) CreateList(ctx context.Context, ownerID uuid.UUID, input CreateListInput) (*ListDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Validationf("name is required")
	}

	var dto ListDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		list := models.ShoppingList{OwnerID: ownerID, Name: name}
		if err := s.repo.WithTx(unit.Tx()).CreateList(ctx, &list); err != nil {
			return pkgerrors.Internal(err, "create shopping list")
		}
		dto = ListFromModel(list, []models.ShoppingListItem{})
		unit.Emit([]uuid.UUID{ownerID}, enums.EventShoppingList, enums.ChangeTypeAdd, dto)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) GetList(ctx context.Context, viewerID, listID uuid.UUID) (*ListDTO, error) {
	var dto ListDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		list, err := s.loadVisible(ctx, unit, viewerID, listID)
		if err != nil {
			return err
		}
		items, err := s.repo.WithTx(unit.Tx()).Items(ctx, listID)
		if err != nil {
			return pkgerrors.Internal(err, "load list items")
		}
		if items == nil {
			items = []models.ShoppingListItem{}
		}
		dto = ListFromModel(*list, items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) AddItem(ctx context.Context, actorID, listID uuid.UUID, input ItemInput) (*ItemDTO, error) {
	item, err := manualItem(listID, input)
	if err != nil {
		return nil, err
	}

	err = s.runner.Do(ctx, func(unit *uow.Unit) error {
		if _, err := s.loadVisible(ctx, unit, actorID, listID); err != nil {
			return err
		}
		if err := s.repo.WithTx(unit.Tx()).CreateItem(ctx, &item); err != nil {
			return pkgerrors.Internal(err, "create list item")
		}
		return s.emitItem(ctx, unit, item, enums.ChangeTypeAdd)
	})
	if err != nil {
		return nil, err
	}
	dto := ItemFromModel(item)
	return &dto, nil
}

func (s *service) AddItems(ctx context.Context, actorID, listID uuid.UUID, inputs []ItemInput) ([]ItemDTO, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.Validationf("at least one item is required")
	}
	items := make([]models.ShoppingListItem, 0, len(inputs))
	for _, input := range inputs {
		item, err := manualItem(listID, input)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		if _, err := s.loadVisible(ctx, unit, actorID, listID); err != nil {
			return err
		}
		repo := s.repo.WithTx(unit.Tx())
		for i := range items {
			if err := repo.CreateItem(ctx, &items[i]); err != nil {
				return pkgerrors.Internal(err, "create list item")
			}
		}
		audience, err := s.audience.ShoppingListAudience(ctx, unit, listID)
		if err != nil {
			return pkgerrors.Passthrough(err, "resolve list audience")
		}
		unit.Emit(audience, enums.EventShoppingListItems, enums.ChangeTypeAdd, BatchDTO{
			ShoppingListID: listID,
			Items:          ItemsFromModels(items),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ItemsFromModels(items), nil
}

func (s *service) UpdateItem(ctx context.Context, actorID, listID, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	fields, err := updateFields(input)
	if err != nil {
		return nil, err
	}

	var dto ItemDTO
	err = s.runner.Do(ctx, func(unit *uow.Unit) error {
		if _, err := s.loadVisible(ctx, unit, actorID, listID); err != nil {
			return err
		}
		repo := s.repo.WithTx(unit.Tx())
		item, err := repo.FindItem(ctx, listID, itemID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.NotFoundf("item not found")
			}
			return pkgerrors.Internal(err, "load list item")
		}
		if len(fields) == 0 {
			dto = ItemFromModel(*item)
			return nil
		}
		if err := repo.UpdateItem(ctx, item.ID, fields); err != nil {
			return pkgerrors.Internal(err, "update list item")
		}
		updated, err := repo.FindItem(ctx, listID, itemID)
		if err != nil {
			return pkgerrors.Internal(err, "reload list item")
		}
		dto = ItemFromModel(*updated)
		return s.emitItem(ctx, unit, *updated, enums.ChangeTypeUpdate)
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) SetObtained(ctx context.Context, actorID, listID, itemID uuid.UUID, obtained bool) (*ItemDTO, error) {
	return s.UpdateItem(ctx, actorID, listID, itemID, UpdateItemInput{Obtained: &obtained})
}

func (s *service) DeleteItem(ctx context.Context, actorID, listID, itemID uuid.UUID) error {
	return s.runner.Do(ctx, func(unit *uow.Unit) error {
		if _, err := s.loadVisible(ctx, unit, actorID, listID); err != nil {
			return err
		}
		repo := s.repo.WithTx(unit.Tx())
		item, err := repo.FindItem(ctx, listID, itemID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.NotFoundf("item not found")
			}
			return pkgerrors.Internal(err, "load list item")
		}
		// audience first: the event must reach everyone who could see the item
		audience, err := s.audience.ShoppingListAudience(ctx, unit, listID)
		if err != nil {
			return pkgerrors.Passthrough(err, "resolve list audience")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Internal(err, "delete list item")
		}
		unit.Emit(audience, enums.EventShoppingListItem, enums.ChangeTypeDelete, ItemFromModel(*item))
		return nil
	})
}

func (s *service) DeleteList(ctx context.Context, actorID, listID uuid.UUID) error {
	return s.runner.Do(ctx, func(unit *uow.Unit) error {
		list, err := s.load(ctx, unit, listID)
		if err != nil {
			return err
		}
		shared, err := s.audience.IsShoppingListShared(ctx, unit, listID, actorID)
		if err != nil {
			return pkgerrors.Passthrough(err, "check list share")
		}
		if err := visibility.EnsureOwner(visibility.Input{
			Resource: resourceName,
			OwnerID:  list.OwnerID,
			ViewerID: actorID,
			Shared:   shared,
		}); err != nil {
			return err
		}
		if list.MealPlanID != nil {
			return pkgerrors.Statef("shopping list belongs to a meal plan; delete the plan instead")
		}
		if err := s.materializer.DropList(ctx, unit, listID); err != nil {
			return err
		}
		if s.logg != nil {
			logCtx := s.logg.WithListID(ctx, listID.String())
			s.logg.Info(s.logg.WithUserID(logCtx, actorID.String()), "shopping list deleted")
		}
		return nil
	})
}

func (s *service) load(ctx context.Context, unit *uow.Unit, listID uuid.UUID) (*models.ShoppingList, error) {
	list, err := s.repo.WithTx(unit.Tx()).FindList(ctx, listID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("%s not found", resourceName)
		}
		return nil, pkgerrors.Internal(err, "load shopping list")
	}
	return list, nil
}

func (s *service) loadVisible(ctx context.Context, unit *uow.Unit, viewerID, listID uuid.UUID) (*models.ShoppingList, error) {
	list, err := s.load(ctx, unit, listID)
	if err != nil {
		return nil, err
	}
	shared := false
	if list.OwnerID != viewerID {
		shared, err = s.audience.IsShoppingListShared(ctx, unit, listID, viewerID)
		if err != nil {
			return nil, pkgerrors.Passthrough(err, "check list share")
		}
	}
	if err := visibility.EnsureVisible(visibility.Input{
		Resource: resourceName,
		OwnerID:  list.OwnerID,
		ViewerID: viewerID,
		Shared:   shared,
	}); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *service) emitItem(ctx context.Context, unit *uow.Unit, item models.ShoppingListItem, changeType enums.ChangeType) error {
	audience, err := s.audience.ShoppingListAudience(ctx, unit, item.ShoppingListID)
	if err != nil {
		return pkgerrors.Passthrough(err, "resolve list audience")
	}
	unit.Emit(audience, enums.EventShoppingListItem, changeType, ItemFromModel(item))
	return nil
}

func manualItem(listID uuid.UUID, input ItemInput) (models.ShoppingListItem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.ShoppingListItem{}, pkgerrors.Validationf("item name is required")
	}
	if input.Multiplier < 0 {
		return models.ShoppingListItem{}, pkgerrors.Validationf("multiplier must be at least 1")
	}
	return models.ShoppingListItem{
		ShoppingListID: listID,
		Name:           name,
		Amount:         strings.TrimSpace(input.Amount),
		Unit:           strings.TrimSpace(input.Unit),
		Category:       strings.TrimSpace(input.Category),
		Multiplier:     input.Multiplier,
		MealName:       strings.TrimSpace(input.MealName),
	}, nil
}

func updateFields(input UpdateItemInput) (map[string]any, error) {
	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.Validationf("item name cannot be empty")
		}
		fields["name"] = name
	}
	if input.Amount != nil {
		fields["amount"] = strings.TrimSpace(*input.Amount)
	}
	if input.Unit != nil {
		fields["unit"] = strings.TrimSpace(*input.Unit)
	}
	if input.Category != nil {
		fields["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Multiplier != nil {
		if *input.Multiplier < 1 {
			return nil, pkgerrors.Validationf("multiplier must be at least 1")
		}
		fields["multiplier"] = *input.Multiplier
	}
	if input.Obtained != nil {
		fields["obtained"] = *input.Obtained
	}
	return fields, nil
}
