package shoppinglists

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/metrics"
)

const planListSuffix = " Mealplan"

// Ingredient fields that propagate to derived items.
const (
	FieldName     = "name"
	FieldAmount   = "amount"
	FieldUnit     = "unit"
	FieldCategory = "category"
)

var propagatedFields = []string{FieldName, FieldAmount, FieldUnit, FieldCategory}

// PlanListName is the name every list derived from a plan carries.
func PlanListName(planName string) string {
	return planName + planListSuffix
}

// AudienceResolver answers who may observe a list and removes its sharing edges.
type AudienceResolver interface {
	ShoppingListAudience(ctx context.Context, unit *uow.Unit, listID uuid.UUID) ([]uuid.UUID, error)
	IsShoppingListShared(ctx context.Context, unit *uow.Unit, listID, userID uuid.UUID) (bool, error)
	RevokeShoppingList(ctx context.Context, unit *uow.Unit, listID uuid.UUID) error
}

// Materializer keeps derived line items consistent with ingredients and plan
// membership. Every method runs inside the caller's unit of work and records
// one realtime change per touched item, except the bulk variants.
type Materializer struct {
	repo     *Repository
	audience AudienceResolver
	metrics  *metrics.MaterializerMetrics
	policy   string
	logg     *logger.Logger
}

// MaterializerParams bundles the materializer dependencies.
type MaterializerParams struct {
	Repo             *Repository
	Audience         AudienceResolver
	Metrics          *metrics.MaterializerMetrics
	MultiplierPolicy string
	Logger           *logger.Logger
}

func NewMaterializer(params MaterializerParams) (*Materializer, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shopping list repository required")
	}
	if params.Audience == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audience resolver required")
	}
	policy := strings.ToLower(strings.TrimSpace(params.MultiplierPolicy))
	if policy == "" {
		policy = config.MultiplierPolicyListMin
	}
	if policy != config.MultiplierPolicyListMin && policy != config.MultiplierPolicyInstance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown multiplier policy %q", params.MultiplierPolicy))
	}
	return &Materializer{
		repo:     params.Repo,
		audience: params.Audience,
		metrics:  params.Metrics,
		policy:   policy,
		logg:     params.Logger,
	}, nil
}

// audienceCache resolves each list's audience once per operation.
type audienceCache struct {
	resolver AudienceResolver
	unit     *uow.Unit
	byList   map[uuid.UUID][]uuid.UUID
}

func (m *Materializer) newAudienceCache(unit *uow.Unit) *audienceCache {
	return &audienceCache{resolver: m.audience, unit: unit, byList: map[uuid.UUID][]uuid.UUID{}}
}

func (c *audienceCache) forList(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	if users, ok := c.byList[listID]; ok {
		return users, nil
	}
	users, err := c.resolver.ShoppingListAudience(ctx, c.unit, listID)
	if err != nil {
		return nil, pkgerrors.Passthrough(err, "resolve list audience")
	}
	c.byList[listID] = users
	return users, nil
}

func (c *audienceCache) emitItem(ctx context.Context, item models.ShoppingListItem, changeType enums.ChangeType) error {
	audience, err := c.forList(ctx, item.ShoppingListID)
	if err != nil {
		return err
	}
	c.unit.Emit(audience, enums.EventShoppingListItem, changeType, ItemFromModel(item))
	return nil
}

// CreatePlanLists creates the primary list (and optionally the sub-list) of a
// plan whose ID is already assigned, and links them on the plan.
func (m *Materializer) CreatePlanLists(ctx context.Context, unit *uow.Unit, plan *models.MealPlan, withSubList bool) ([]models.ShoppingList, error) {
	repo := m.repo.WithTx(unit.Tx())
	planID := plan.ID

	primary := models.ShoppingList{OwnerID: plan.OwnerID, Name: PlanListName(plan.Name), MealPlanID: &planID}
	if err := repo.CreateList(ctx, &primary); err != nil {
		return nil, pkgerrors.Internal(err, "create plan shopping list")
	}
	plan.ShoppingListID = primary.ID
	lists := []models.ShoppingList{primary}

	if withSubList {
		sub := models.ShoppingList{OwnerID: plan.OwnerID, Name: PlanListName(plan.Name), MealPlanID: &planID, IsSublist: true}
		if err := repo.CreateList(ctx, &sub); err != nil {
			return nil, pkgerrors.Internal(err, "create plan sub list")
		}
		subID := sub.ID
		plan.SubListID = &subID
		lists = append(lists, sub)
	}

	for _, list := range lists {
		unit.Emit([]uuid.UUID{plan.OwnerID}, enums.EventShoppingList, enums.ChangeTypeAdd, ListFromModel(list, nil))
	}
	return lists, nil
}

// MaterializeMeal derives one item per ingredient of meal into every list of
// the plan, tagged with the meal's current name.
func (m *Materializer) MaterializeMeal(ctx context.Context, unit *uow.Unit, plan models.MealPlan, meal models.Meal, multiplier int) ([]models.ShoppingListItem, error) {
	if multiplier < 1 {
		return nil, pkgerrors.Validationf("multiplier must be at least 1")
	}
	repo := m.repo.WithTx(unit.Tx())
	ingredients, err := repo.IngredientsForMeal(ctx, meal.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load meal ingredients")
	}

	audience := m.newAudienceCache(unit)
	var created []models.ShoppingListItem
	for _, listID := range plan.ListIDs() {
		for _, ingredient := range ingredients {
			item := derivedItem(listID, ingredient, meal.Name, multiplier)
			if err := m.createItem(ctx, repo, &item); err != nil {
				return nil, err
			}
			if err := audience.emitItem(ctx, item, enums.ChangeTypeAdd); err != nil {
				return nil, err
			}
			created = append(created, item)
		}
	}
	m.metrics.AddItems("create", len(created))
	return created, nil
}

// RemoveMeal deletes the meal's items from the plan's lists, including manual
// items filed under its name. When another meal in the plan shares the name,
// only items derived from this meal's recipe go.
func (m *Materializer) RemoveMeal(ctx context.Context, unit *uow.Unit, plan models.MealPlan, meal models.Meal) ([]models.ShoppingListItem, error) {
	repo := m.repo.WithTx(unit.Tx())
	items, err := m.mealItems(ctx, repo, plan.ID, plan.ListIDs(), meal.ID, meal.Name)
	if err != nil {
		return nil, err
	}
	if err := m.deleteItems(ctx, unit, repo, m.newAudienceCache(unit), items); err != nil {
		return nil, err
	}
	return items, nil
}

// OnIngredientCreated derives the new ingredient into every list of every plan
// that references its meal.
func (m *Materializer) OnIngredientCreated(ctx context.Context, unit *uow.Unit, ingredient models.Ingredient) ([]models.ShoppingListItem, error) {
	created, _, err := m.materializeIngredients(ctx, unit, []models.Ingredient{ingredient})
	if err != nil {
		return nil, err
	}
	audience := m.newAudienceCache(unit)
	for _, item := range created {
		if err := audience.emitItem(ctx, item, enums.ChangeTypeAdd); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// OnIngredientsCreated is the bulk variant: one batched event per affected list.
func (m *Materializer) OnIngredientsCreated(ctx context.Context, unit *uow.Unit, ingredients []models.Ingredient) ([]models.ShoppingListItem, error) {
	created, listOrder, err := m.materializeIngredients(ctx, unit, ingredients)
	if err != nil {
		return nil, err
	}
	byList := make(map[uuid.UUID][]models.ShoppingListItem, len(listOrder))
	for _, item := range created {
		byList[item.ShoppingListID] = append(byList[item.ShoppingListID], item)
	}
	audience := m.newAudienceCache(unit)
	for _, listID := range listOrder {
		users, err := audience.forList(ctx, listID)
		if err != nil {
			return nil, err
		}
		unit.Emit(users, enums.EventShoppingListItems, enums.ChangeTypeAdd, BatchDTO{
			ShoppingListID: listID,
			Items:          ItemsFromModels(byList[listID]),
		})
	}
	return created, nil
}

func (m *Materializer) materializeIngredients(ctx context.Context, unit *uow.Unit, ingredients []models.Ingredient) ([]models.ShoppingListItem, []uuid.UUID, error) {
	repo := m.repo.WithTx(unit.Tx())

	meals := map[uuid.UUID]*models.Meal{}
	plans := map[uuid.UUID][]PlanInstance{}
	// Multipliers are fixed per list before any insert so a bulk add sees the
	// same "existing" items for every ingredient.
	listMultiplier := map[uuid.UUID]int{}
	var listOrder []uuid.UUID
	var created []models.ShoppingListItem

	for _, ingredient := range ingredients {
		meal, ok := meals[ingredient.RecipeID]
		if !ok {
			found, err := repo.MealForRecipe(ctx, ingredient.RecipeID)
			if err != nil {
				if db.IsNotFound(err) {
					return nil, nil, pkgerrors.NotFoundf("recipe %s not found", ingredient.RecipeID)
				}
				return nil, nil, pkgerrors.Internal(err, "resolve ingredient meal")
			}
			meal = found
			meals[ingredient.RecipeID] = meal
		}

		instances, ok := plans[meal.ID]
		if !ok {
			found, err := repo.PlansForMeal(ctx, meal.ID)
			if err != nil {
				return nil, nil, pkgerrors.Internal(err, "load plans for meal")
			}
			instances = found
			plans[meal.ID] = instances
		}

		for _, instance := range instances {
			for _, listID := range instance.ListIDs() {
				multiplier, ok := listMultiplier[listID]
				if !ok {
					var err error
					multiplier, err = m.multiplierFor(ctx, repo, listID, instance.Multiplier)
					if err != nil {
						return nil, nil, err
					}
					listMultiplier[listID] = multiplier
					listOrder = append(listOrder, listID)
				}
				item := derivedItem(listID, ingredient, meal.Name, multiplier)
				if err := m.createItem(ctx, repo, &item); err != nil {
					return nil, nil, err
				}
				created = append(created, item)
			}
		}
	}
	m.metrics.AddItems("create", len(created))
	return created, listOrder, nil
}

// multiplierFor applies the configured policy for an ingredient added to a
// meal that is already planned.
func (m *Materializer) multiplierFor(ctx context.Context, repo *Repository, listID uuid.UUID, instanceMultiplier int) (int, error) {
	if m.policy == config.MultiplierPolicyInstance {
		if instanceMultiplier < 1 {
			return 1, nil
		}
		return instanceMultiplier, nil
	}
	lowest, ok, err := repo.MinMultiplier(ctx, listID)
	if err != nil {
		return 0, pkgerrors.Internal(err, "load list multiplier")
	}
	if !ok || lowest < 1 {
		return 1, nil
	}
	return lowest, nil
}

// OnIngredientUpdated copies the changed fields onto every derived item.
// Obtained and multiplier are never touched.
func (m *Materializer) OnIngredientUpdated(ctx context.Context, unit *uow.Unit, ingredient models.Ingredient, changedFields []string) ([]models.ShoppingListItem, error) {
	fields := propagatedValues(ingredient, changedFields)
	if len(fields) == 0 {
		return nil, nil
	}
	repo := m.repo.WithTx(unit.Tx())
	items, err := repo.ItemsByIngredient(ctx, ingredient.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load ingredient items")
	}

	audience := m.newAudienceCache(unit)
	for i := range items {
		if err := repo.UpdateItem(ctx, items[i].ID, fields); err != nil {
			return nil, pkgerrors.Internal(err, "update derived item")
		}
		applyFields(&items[i], fields)
		if err := audience.emitItem(ctx, items[i], enums.ChangeTypeUpdate); err != nil {
			return nil, err
		}
	}
	m.metrics.AddItems("update", len(items))
	return items, nil
}

// OnIngredientDeleted deletes every item derived from the ingredient.
func (m *Materializer) OnIngredientDeleted(ctx context.Context, unit *uow.Unit, ingredientID uuid.UUID) ([]models.ShoppingListItem, error) {
	repo := m.repo.WithTx(unit.Tx())
	items, err := repo.ItemsByIngredient(ctx, ingredientID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load ingredient items")
	}
	if err := m.deleteItems(ctx, unit, repo, m.newAudienceCache(unit), items); err != nil {
		return nil, err
	}
	return items, nil
}

// OnMealRenamed re-tags the meal's items in every plan so they stay keyed by
// the meal's current name. Only items derived from this meal's recipe move;
// manual items filed under the old name follow unless another meal in the
// plan still carries that name.
func (m *Materializer) OnMealRenamed(ctx context.Context, unit *uow.Unit, meal models.Meal, oldName string) ([]models.ShoppingListItem, error) {
	if oldName == meal.Name {
		return nil, nil
	}
	repo := m.repo.WithTx(unit.Tx())
	instances, err := repo.PlansForMeal(ctx, meal.ID)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load plans for meal")
	}

	audience := m.newAudienceCache(unit)
	var updated []models.ShoppingListItem
	for _, instance := range instances {
		items, err := m.mealItems(ctx, repo, instance.PlanID, instance.ListIDs(), meal.ID, oldName)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if err := repo.UpdateItem(ctx, items[i].ID, map[string]any{"meal_name": meal.Name}); err != nil {
				return nil, m.mapWriteError(err, "retag derived item")
			}
			items[i].MealName = meal.Name
			if err := audience.emitItem(ctx, items[i], enums.ChangeTypeUpdate); err != nil {
				return nil, err
			}
			updated = append(updated, items[i])
		}
	}
	m.metrics.AddItems("update", len(updated))
	return updated, nil
}

// mealItems returns the items in listIDs that belong to mealID filed under
// name: those derived from its recipe, plus manual ones unless another meal
// of the plan carries the same name.
func (m *Materializer) mealItems(ctx context.Context, repo *Repository, planID uuid.UUID, listIDs []uuid.UUID, mealID uuid.UUID, name string) ([]models.ShoppingListItem, error) {
	items, err := repo.ItemsDerivedFromMeal(ctx, listIDs, mealID, name)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load meal items")
	}
	shared, err := repo.PlanHasOtherMealNamed(ctx, planID, mealID, name)
	if err != nil {
		return nil, pkgerrors.Internal(err, "check plan meal names")
	}
	if shared {
		return items, nil
	}
	tagged, err := repo.ItemsByMealName(ctx, listIDs, name)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load meal items")
	}
	for _, item := range tagged {
		if item.IngredientID == nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// SetInstanceMultiplier rescales the items derived from meal in the plan's
// lists. Manual items and other meals sharing the name are left alone.
func (m *Materializer) SetInstanceMultiplier(ctx context.Context, unit *uow.Unit, plan models.MealPlan, meal models.Meal, multiplier int) ([]models.ShoppingListItem, error) {
	if multiplier < 1 {
		return nil, pkgerrors.Validationf("multiplier must be at least 1")
	}
	repo := m.repo.WithTx(unit.Tx())
	items, err := repo.ItemsDerivedFromMeal(ctx, plan.ListIDs(), meal.ID, meal.Name)
	if err != nil {
		return nil, pkgerrors.Internal(err, "load meal items")
	}

	audience := m.newAudienceCache(unit)
	var updated []models.ShoppingListItem
	for i := range items {
		if items[i].IngredientID == nil || items[i].Multiplier == multiplier {
			continue
		}
		if err := repo.UpdateItem(ctx, items[i].ID, map[string]any{"multiplier": multiplier}); err != nil {
			return nil, pkgerrors.Internal(err, "rescale derived item")
		}
		items[i].Multiplier = multiplier
		if err := audience.emitItem(ctx, items[i], enums.ChangeTypeUpdate); err != nil {
			return nil, err
		}
		updated = append(updated, items[i])
	}
	m.metrics.AddItems("update", len(updated))
	return updated, nil
}

// OnMealPlanRenamed renames every list of the plan to "{newName} Mealplan".
// Items keep their meal_name.
func (m *Materializer) OnMealPlanRenamed(ctx context.Context, unit *uow.Unit, plan models.MealPlan, newName string) ([]models.ShoppingList, error) {
	repo := m.repo.WithTx(unit.Tx())
	name := PlanListName(newName)
	for _, listID := range plan.ListIDs() {
		if err := repo.RenameList(ctx, listID, name); err != nil {
			return nil, pkgerrors.Internal(err, "rename plan shopping list")
		}
	}
	lists, err := repo.ListsByIDs(ctx, plan.ListIDs())
	if err != nil {
		return nil, pkgerrors.Internal(err, "reload plan shopping lists")
	}

	audience := m.newAudienceCache(unit)
	for _, list := range lists {
		users, err := audience.forList(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		unit.Emit(users, enums.EventShoppingList, enums.ChangeTypeUpdate, ListFromModel(list, nil))
	}
	return lists, nil
}

// OnMealPlanDeleted deletes the plan's items and lists. Audiences are captured
// before sharing edges are revoked so sharers still hear about the deletes.
func (m *Materializer) OnMealPlanDeleted(ctx context.Context, unit *uow.Unit, plan models.MealPlan) error {
	return m.dropLists(ctx, unit, plan.ListIDs())
}

// DropList removes one list with its items and sharing edges.
func (m *Materializer) DropList(ctx context.Context, unit *uow.Unit, listID uuid.UUID) error {
	return m.dropLists(ctx, unit, []uuid.UUID{listID})
}

func (m *Materializer) dropLists(ctx context.Context, unit *uow.Unit, listIDs []uuid.UUID) error {
	repo := m.repo.WithTx(unit.Tx())
	audience := m.newAudienceCache(unit)

	for _, listID := range listIDs {
		list, err := repo.FindList(ctx, listID)
		if err != nil {
			if db.IsNotFound(err) {
				continue
			}
			return pkgerrors.Internal(err, "load shopping list")
		}
		users, err := audience.forList(ctx, listID)
		if err != nil {
			return err
		}
		items, err := repo.Items(ctx, listID)
		if err != nil {
			return pkgerrors.Internal(err, "load list items")
		}
		if err := m.deleteItems(ctx, unit, repo, audience, items); err != nil {
			return err
		}
		if err := m.audience.RevokeShoppingList(ctx, unit, listID); err != nil {
			return pkgerrors.Passthrough(err, "revoke list shares")
		}
		if err := repo.DeleteList(ctx, listID); err != nil {
			return pkgerrors.Internal(err, "delete shopping list")
		}
		unit.Emit(users, enums.EventShoppingList, enums.ChangeTypeDelete, ListFromModel(*list, nil))
	}
	return nil
}

func (m *Materializer) deleteItems(ctx context.Context, unit *uow.Unit, repo *Repository, audience *audienceCache, items []models.ShoppingListItem) error {
	for _, item := range items {
		// resolve before the delete so the audience is read from the same snapshot
		if _, err := audience.forList(ctx, item.ShoppingListID); err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Internal(err, "delete derived item")
		}
		if err := audience.emitItem(ctx, item, enums.ChangeTypeDelete); err != nil {
			return err
		}
	}
	m.metrics.AddItems("delete", len(items))
	return nil
}

func (m *Materializer) createItem(ctx context.Context, repo *Repository, item *models.ShoppingListItem) error {
	if err := repo.CreateItem(ctx, item); err != nil {
		return m.mapWriteError(err, "create derived item")
	}
	return nil
}

func (m *Materializer) mapWriteError(err error, message string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "line item for this ingredient and meal already exists in the list")
	}
	return pkgerrors.Internal(err, message)
}

func derivedItem(listID uuid.UUID, ingredient models.Ingredient, mealName string, multiplier int) models.ShoppingListItem {
	ingredientID := ingredient.ID
	return models.ShoppingListItem{
		ShoppingListID: listID,
		IngredientID:   &ingredientID,
		Name:           ingredient.Name,
		Amount:         ingredient.Amount,
		Unit:           ingredient.Unit,
		Category:       ingredient.Category,
		Multiplier:     multiplier,
		MealName:       mealName,
	}
}

func propagatedValues(ingredient models.Ingredient, changed []string) map[string]any {
	fields := map[string]any{}
	for _, field := range changed {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case FieldName:
			fields[FieldName] = ingredient.Name
		case FieldAmount:
			fields[FieldAmount] = ingredient.Amount
		case FieldUnit:
			fields[FieldUnit] = ingredient.Unit
		case FieldCategory:
			fields[FieldCategory] = ingredient.Category
		}
	}
	return fields
}

func applyFields(item *models.ShoppingListItem, fields map[string]any) {
	if v, ok := fields[FieldName].(string); ok {
		item.Name = v
	}
	if v, ok := fields[FieldAmount].(string); ok {
		item.Amount = v
	}
	if v, ok := fields[FieldUnit].(string); ok {
		item.Unit = v
	}
	if v, ok := fields[FieldCategory].(string); ok {
		item.Category = v
	}
}
