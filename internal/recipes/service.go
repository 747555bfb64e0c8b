// Package recipes owns meals and their recipes. Every ingredient write is
// forwarded to the shopping-list materializer inside the same unit of work.
package recipes

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

const mealResource = "meal"

// Materializer receives ingredient and meal changes.
type Materializer interface {
	OnIngredientCreated(ctx context.Context, unit *uow.Unit, ingredient models.Ingredient) ([]models.ShoppingListItem, error)
	OnIngredientsCreated(ctx context.Context, unit *uow.Unit, ingredients []models.Ingredient) ([]models.ShoppingListItem, error)
	OnIngredientUpdated(ctx context.Context, unit *uow.Unit, ingredient models.Ingredient, changedFields []string) ([]models.ShoppingListItem, error)
	OnIngredientDeleted(ctx context.Context, unit *uow.Unit, ingredientID uuid.UUID) ([]models.ShoppingListItem, error)
	OnMealRenamed(ctx context.Context, unit *uow.Unit, meal models.Meal, oldName string) ([]models.ShoppingListItem, error)
}

// Access answers meal visibility and clears sharing edges.
type Access interface {
	IsMealShared(ctx context.Context, unit *uow.Unit, mealID, userID uuid.UUID) (bool, error)
	RevokeMeal(ctx context.Context, unit *uow.Unit, mealID uuid.UUID) error
}

// PlanDetacher removes a meal from every plan that references it.
type PlanDetacher interface {
	DetachMealEverywhere(ctx context.Context, unit *uow.Unit, meal models.Meal) error
}

type Service interface {
	CreateMeal(ctx context.Context, ownerID uuid.UUID, input CreateMealInput) (*MealDTO, error)
	GetMeal(ctx context.Context, viewerID, mealID uuid.UUID) (*MealDTO, error)
	ListMeals(ctx context.Context, viewerID uuid.UUID, params pagination.Params) (*pagination.Page[MealDTO], error)
	RenameMeal(ctx context.Context, actorID, mealID uuid.UUID, name string) (*MealDTO, error)
	UpdateMeal(ctx context.Context, actorID, mealID uuid.UUID, input UpdateMealInput) (*MealDTO, error)
	DeleteMeal(ctx context.Context, actorID, mealID uuid.UUID) error

	CreateRecipe(ctx context.Context, actorID, mealID uuid.UUID, input CreateRecipeInput) (*RecipeDTO, error)
	AddIngredientSection(ctx context.Context, actorID, mealID uuid.UUID, input SectionInput) (*SectionDTO, error)
	AddStepSection(ctx context.Context, actorID, mealID uuid.UUID, input SectionInput) (*SectionDTO, error)
	AddStep(ctx context.Context, actorID, mealID uuid.UUID, input StepInput) (*StepDTO, error)
	DeleteStep(ctx context.Context, actorID, stepID uuid.UUID) error

	AddIngredient(ctx context.Context, actorID, mealID uuid.UUID, input IngredientInput) (*IngredientDTO, error)
	AddIngredients(ctx context.Context, actorID, mealID uuid.UUID, inputs []IngredientInput) ([]IngredientDTO, error)
	UpdateIngredient(ctx context.Context, actorID, ingredientID uuid.UUID, input UpdateIngredientInput) (*IngredientDTO, error)
	DeleteIngredient(ctx context.Context, actorID, ingredientID uuid.UUID) error
}

type CreateMealInput struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type UpdateMealInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type CreateRecipeInput struct {
	Name string `json:"name" validate:"max=200"`
}

type SectionInput struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	Position int    `json:"position" validate:"gte=0"`
}

type StepInput struct {
	SectionID *uuid.UUID `json:"section_id"`
	Body      string     `json:"body" validate:"notblank,max=4000"`
	Position  int        `json:"position" validate:"gte=0"`
}

type IngredientInput struct {
	SectionID *uuid.UUID `json:"section_id"`
	Name      string     `json:"name" validate:"notblank,max=200"`
	Amount    string     `json:"amount" validate:"max=50"`
	Unit      string     `json:"unit" validate:"max=50"`
	Category  string     `json:"category" validate:"max=100"`
	Position  *int       `json:"position" validate:"omitempty,gte=0"`
}

// UpdateIngredientInput is a patch; nil fields are left alone.
type UpdateIngredientInput struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Amount   *string `json:"amount" validate:"omitempty,max=50"`
	Unit     *string `json:"unit" validate:"omitempty,max=50"`
	Category *string `json:"category" validate:"omitempty,max=100"`
	Position *int    `json:"position" validate:"omitempty,gte=0"`
}

type ServiceParams struct {
	Runner       *uow.Runner
	Repo         *Repository
	Materializer Materializer
	Access       Access
	Plans        PlanDetacher
	Logger       *logger.Logger
}

type service struct {
	runner       *uow.Runner
	repo         *Repository
	materializer Materializer
	access       Access
	plans        PlanDetacher
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "unit of work runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipes repository required")
	}
	if params.Materializer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materializer required")
	}
	if params.Access == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "meal access required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plan detacher required")
	}
	return &service{
		runner:       params.Runner,
		repo:         params.Repo,
		materializer: params.Materializer,
		access:       params.Access,
		plans:        params.Plans,
		logg:         params.Logger,
	}, nil
}

func (s *service) CreateMeal(ctx context.Context, ownerID uuid.UUID, input CreateMealInput) (*MealDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Validationf("meal name is required")
	}
	meal := models.Meal{OwnerID: ownerID, Name: name, Description: strings.TrimSpace(input.Description)}
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		if err := s.repo.WithTx(unit.Tx()).CreateMeal(ctx, &meal); err != nil {
			return pkgerrors.Internal(err, "create meal")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := MealFromModel(meal)
	return &dto, nil
}

func (s *service) GetMeal(ctx context.Context, viewerID, mealID uuid.UUID) (*MealDTO, error) {
	var dto MealDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		meal, err := s.loadMeal(ctx, unit, viewerID, mealID, false)
		if err != nil {
			return err
		}
		dto = MealFromModel(*meal)

		repo := s.repo.WithTx(unit.Tx())
		recipe, err := repo.FindRecipeByMeal(ctx, mealID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return pkgerrors.Internal(err, "load recipe")
		}
		tree, err := repo.Tree(ctx, recipe.ID)
		if err != nil {
			return pkgerrors.Internal(err, "load recipe tree")
		}
		recipeDTO := RecipeFromModel(*recipe, tree)
		dto.Recipe = &recipeDTO
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) ListMeals(ctx context.Context, viewerID uuid.UUID, params pagination.Params) (*pagination.Page[MealDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListMeals(ctx, listMealsParams{
		ViewerID: viewerID,
		Limit:    pagination.LimitWithBuffer(params.Limit),
		Cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list meals")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(m models.Meal) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})

	items := make([]MealDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, MealFromModel(row))
	}
	return &pagination.Page[MealDTO]{Items: items, Cursor: next}, nil
}

func (s *service) RenameMeal(ctx context.Context, actorID, mealID uuid.UUID, name string) (*MealDTO, error) {
	return s.UpdateMeal(ctx, actorID, mealID, UpdateMealInput{Name: &name})
}

func (s *service) UpdateMeal(ctx context.Context, actorID, mealID uuid.UUID, input UpdateMealInput) (*MealDTO, error) {
	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.Validationf("meal name cannot be empty")
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}

	var dto MealDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		meal, err := s.loadMeal(ctx, unit, actorID, mealID, true)
		if err != nil {
			return err
		}
		oldName := meal.Name
		repo := s.repo.WithTx(unit.Tx())
		if err := repo.UpdateMeal(ctx, mealID, fields); err != nil {
			return pkgerrors.Internal(err, "update meal")
		}
		updated, err := repo.FindMeal(ctx, mealID)
		if err != nil {
			return pkgerrors.Internal(err, "reload meal")
		}
		if updated.Name != oldName {
			if _, err := s.materializer.OnMealRenamed(ctx, unit, *updated, oldName); err != nil {
				return err
			}
		}
		dto = MealFromModel(*updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) DeleteMeal(ctx context.Context, actorID, mealID uuid.UUID) error {
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		meal, err := s.loadMeal(ctx, unit, actorID, mealID, true)
		if err != nil {
			return err
		}
		if err := s.access.RevokeMeal(ctx, unit, mealID); err != nil {
			return pkgerrors.Passthrough(err, "revoke meal shares")
		}
		if err := s.plans.DetachMealEverywhere(ctx, unit, *meal); err != nil {
			return pkgerrors.Passthrough(err, "detach meal from plans")
		}

		repo := s.repo.WithTx(unit.Tx())
		recipe, err := repo.FindRecipeByMeal(ctx, mealID)
		switch {
		case err == nil:
			ingredients, err := repo.Ingredients(ctx, recipe.ID)
			if err != nil {
				return pkgerrors.Internal(err, "load ingredients")
			}
			for _, ing := range ingredients {
				if _, err := s.materializer.OnIngredientDeleted(ctx, unit, ing.ID); err != nil {
					return err
				}
			}
			if err := repo.DeleteRecipeTree(ctx, recipe.ID); err != nil {
				return pkgerrors.Internal(err, "delete recipe")
			}
		case !db.IsNotFound(err):
			return pkgerrors.Internal(err, "load recipe")
		}

		if err := repo.DeleteMeal(ctx, mealID); err != nil {
			return pkgerrors.Internal(err, "delete meal")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithMealID(s.logg.WithUserID(ctx, actorID.String()), mealID.String())
		s.logg.Info(logCtx, "meal deleted")
	}
	return nil
}

func (s *service) CreateRecipe(ctx context.Context, actorID, mealID uuid.UUID, input CreateRecipeInput) (*RecipeDTO, error) {
	var dto RecipeDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		meal, err := s.loadMeal(ctx, unit, actorID, mealID, false)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(input.Name)
		if name == "" {
			name = meal.Name
		}
		recipe := models.Recipe{MealID: mealID, Name: name}
		if err := s.repo.WithTx(unit.Tx()).CreateRecipe(ctx, &recipe); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Conflictf("meal already has a recipe")
			}
			return pkgerrors.Internal(err, "create recipe")
		}
		dto = RecipeFromModel(recipe, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) AddIngredientSection(ctx context.Context, actorID, mealID uuid.UUID, input SectionInput) (*SectionDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Validationf("section name is required")
	}
	var dto SectionDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		recipe, err := s.loadRecipe(ctx, unit, actorID, mealID)
		if err != nil {
			return err
		}
		section := models.IngredientSection{RecipeID: recipe.ID, Name: name, Position: input.Position}
		if err := s.repo.WithTx(unit.Tx()).CreateIngredientSection(ctx, &section); err != nil {
			return pkgerrors.Internal(err, "create ingredient section")
		}
		dto = SectionDTO{ID: section.ID, Name: section.Name, Position: section.Position}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) AddStepSection(ctx context.Context, actorID, mealID uuid.UUID, input SectionInput) (*SectionDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Validationf("section name is required")
	}
	var dto SectionDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		recipe, err := s.loadRecipe(ctx, unit, actorID, mealID)
		if err != nil {
			return err
		}
		section := models.StepSection{RecipeID: recipe.ID, Name: name, Position: input.Position}
		if err := s.repo.WithTx(unit.Tx()).CreateStepSection(ctx, &section); err != nil {
			return pkgerrors.Internal(err, "create step section")
		}
		dto = SectionDTO{ID: section.ID, Name: section.Name, Position: section.Position}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) AddStep(ctx context.Context, actorID, mealID uuid.UUID, input StepInput) (*StepDTO, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.Validationf("step body is required")
	}
	var dto StepDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		recipe, err := s.loadRecipe(ctx, unit, actorID, mealID)
		if err != nil {
			return err
		}
		if err := s.ensureSection(ctx, unit, recipe.ID, input.SectionID, true); err != nil {
			return err
		}
		step := models.Step{RecipeID: recipe.ID, SectionID: input.SectionID, Body: body, Position: input.Position}
		if err := s.repo.WithTx(unit.Tx()).CreateStep(ctx, &step); err != nil {
			return pkgerrors.Internal(err, "create step")
		}
		dto = StepFromModel(step)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) DeleteStep(ctx context.Context, actorID, stepID uuid.UUID) error {
	return s.runner.Do(ctx, func(unit *uow.Unit) error {
		repo := s.repo.WithTx(unit.Tx())
		step, err := repo.FindStep(ctx, stepID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.NotFoundf("step not found")
			}
			return pkgerrors.Internal(err, "load step")
		}
		if _, err := s.authorizeRecipe(ctx, unit, actorID, step.RecipeID); err != nil {
			return err
		}
		if err := repo.DeleteStep(ctx, stepID); err != nil {
			return pkgerrors.Internal(err, "delete step")
		}
		return nil
	})
}

func (s *service) AddIngredient(ctx context.Context, actorID, mealID uuid.UUID, input IngredientInput) (*IngredientDTO, error) {
	var dto IngredientDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		recipe, err := s.loadRecipe(ctx, unit, actorID, mealID)
		if err != nil {
			return err
		}
		created, err := s.createIngredients(ctx, unit, recipe.ID, []IngredientInput{input})
		if err != nil {
			return err
		}
		if _, err := s.materializer.OnIngredientCreated(ctx, unit, created[0]); err != nil {
			return err
		}
		dto = IngredientFromModel(created[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) AddIngredients(ctx context.Context, actorID, mealID uuid.UUID, inputs []IngredientInput) ([]IngredientDTO, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.Validationf("at least one ingredient is required")
	}
	var out []IngredientDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		recipe, err := s.loadRecipe(ctx, unit, actorID, mealID)
		if err != nil {
			return err
		}
		created, err := s.createIngredients(ctx, unit, recipe.ID, inputs)
		if err != nil {
			return err
		}
		if _, err := s.materializer.OnIngredientsCreated(ctx, unit, created); err != nil {
			return err
		}
		out = make([]IngredientDTO, 0, len(created))
		for _, ing := range created {
			out = append(out, IngredientFromModel(ing))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) UpdateIngredient(ctx context.Context, actorID, ingredientID uuid.UUID, input UpdateIngredientInput) (*IngredientDTO, error) {
	var dto IngredientDTO
	err := s.runner.Do(ctx, func(unit *uow.Unit) error {
		repo := s.repo.WithTx(unit.Tx())
		ingredient, err := s.loadIngredient(ctx, unit, actorID, ingredientID)
		if err != nil {
			return err
		}

		fields, changed, err := ingredientChanges(*ingredient, input)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			dto = IngredientFromModel(*ingredient)
			return nil
		}
		if err := repo.UpdateIngredient(ctx, ingredientID, fields); err != nil {
			return pkgerrors.Internal(err, "update ingredient")
		}
		updated, err := repo.FindIngredient(ctx, ingredientID)
		if err != nil {
			return pkgerrors.Internal(err, "reload ingredient")
		}
		if _, err := s.materializer.OnIngredientUpdated(ctx, unit, *updated, changed); err != nil {
			return err
		}
		dto = IngredientFromModel(*updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) DeleteIngredient(ctx context.Context, actorID, ingredientID uuid.UUID) error {
	return s.runner.Do(ctx, func(unit *uow.Unit) error {
		if _, err := s.loadIngredient(ctx, unit, actorID, ingredientID); err != nil {
			return err
		}
		if _, err := s.materializer.OnIngredientDeleted(ctx, unit, ingredientID); err != nil {
			return err
		}
		if err := s.repo.WithTx(unit.Tx()).DeleteIngredient(ctx, ingredientID); err != nil {
			return pkgerrors.Internal(err, "delete ingredient")
		}
		return nil
	})
}

func (s *service) createIngredients(ctx context.Context, unit *uow.Unit, recipeID uuid.UUID, inputs []IngredientInput) ([]models.Ingredient, error) {
	repo := s.repo.WithTx(unit.Tx())
	next, err := repo.NextIngredientPosition(ctx, recipeID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load ingredient positions")
	}

	created := make([]models.Ingredient, 0, len(inputs))
	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, pkgerrors.Validationf("ingredient name is required")
		}
		if err := s.ensureSection(ctx, unit, recipeID, input.SectionID, false); err != nil {
			return nil, err
		}
		position := next
		if input.Position != nil {
			position = *input.Position
		}
		next = max(next, position) + 1

		ing := models.Ingredient{
			RecipeID:  recipeID,
			SectionID: input.SectionID,
			Name:      name,
			Amount:    strings.TrimSpace(input.Amount),
			Unit:      strings.TrimSpace(input.Unit),
			Category:  strings.TrimSpace(input.Category),
			Position:  position,
		}
		if err := repo.CreateIngredient(ctx, &ing); err != nil {
			return nil, pkgerrors.Internal(err, "create ingredient")
		}
		created = append(created, ing)
	}
	return created, nil
}

func (s *service) ensureSection(ctx context.Context, unit *uow.Unit, recipeID uuid.UUID, sectionID *uuid.UUID, steps bool) error {
	if sectionID == nil {
		return nil
	}
	ok, err := s.repo.WithTx(unit.Tx()).SectionExists(ctx, recipeID, *sectionID, steps)
	if err != nil {
		return pkgerrors.Internal(err, "load section")
	}
	if !ok {
		return pkgerrors.NotFoundf("section not found")
	}
	return nil
}

// loadMeal enforces owner-only access when ownerOnly is set and owner-or-sharer otherwise.
func (s *service) loadMeal(ctx context.Context, unit *uow.Unit, actorID, mealID uuid.UUID, ownerOnly bool) (*models.Meal, error) {
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
	input := visibility.Input{Resource: mealResource, OwnerID: meal.OwnerID, ViewerID: actorID, Shared: shared}
	if ownerOnly {
		err = visibility.EnsureOwner(input)
	} else {
		err = visibility.EnsureVisible(input)
	}
	if err != nil {
		return nil, err
	}
	return meal, nil
}

func (s *service) loadRecipe(ctx context.Context, unit *uow.Unit, actorID, mealID uuid.UUID) (*models.Recipe, error) {
	if _, err := s.loadMeal(ctx, unit, actorID, mealID, false); err != nil {
		return nil, err
	}
	recipe, err := s.repo.WithTx(unit.Tx()).FindRecipeByMeal(ctx, mealID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("recipe not found")
		}
		return nil, pkgerrors.Internal(err, "load recipe")
	}
	return recipe, nil
}

func (s *service) authorizeRecipe(ctx context.Context, unit *uow.Unit, actorID, recipeID uuid.UUID) (*models.Recipe, error) {
	recipe, err := s.repo.WithTx(unit.Tx()).FindRecipe(ctx, recipeID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("recipe not found")
		}
		return nil, pkgerrors.Internal(err, "load recipe")
	}
	if _, err := s.loadMeal(ctx, unit, actorID, recipe.MealID, false); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (s *service) loadIngredient(ctx context.Context, unit *uow.Unit, actorID, ingredientID uuid.UUID) (*models.Ingredient, error) {
	ingredient, err := s.repo.WithTx(unit.Tx()).FindIngredient(ctx, ingredientID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("ingredient not found")
		}
		return nil, pkgerrors.Internal(err, "load ingredient")
	}
	if _, err := s.authorizeRecipe(ctx, unit, actorID, ingredient.RecipeID); err != nil {
		return nil, err
	}
	return ingredient, nil
}

// ingredientChanges returns the column updates and the names of fields whose
// value actually changed.
func ingredientChanges(current models.Ingredient, input UpdateIngredientInput) (map[string]any, []string, error) {
	fields := map[string]any{}
	var changed []string
	set := func(column string, old, next string) {
		if old != next {
			fields[column] = next
			changed = append(changed, column)
		}
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, nil, pkgerrors.Validationf("ingredient name cannot be empty")
		}
		set("name", current.Name, name)
	}
	if input.Amount != nil {
		set("amount", current.Amount, strings.TrimSpace(*input.Amount))
	}
	if input.Unit != nil {
		set("unit", current.Unit, strings.TrimSpace(*input.Unit))
	}
	if input.Category != nil {
		set("category", current.Category, strings.TrimSpace(*input.Category))
	}
	if input.Position != nil && *input.Position != current.Position {
		fields["position"] = *input.Position
		changed = append(changed, "position")
	}
	return fields, changed, nil
}
