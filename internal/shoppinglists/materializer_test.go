package shoppinglists

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
)

func eventsOf(deliveries []realtime.Delivery, event enums.EventName, changeType enums.ChangeType) []realtime.Delivery {
	var out []realtime.Delivery
	for _, d := range deliveries {
		if d.Envelope.EventName == event && d.Envelope.Type == changeType {
			out = append(out, d)
		}
	}
	return out
}

func TestMaterializeMealIntoPrimaryAndSubList(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, _, _ := h.meal(t, owner, "Tacos", "tortilla", "beef")
	plan := h.plan(t, owner, "Week 1", true)
	h.recorder.Reset()

	created := h.addMeal(t, plan, meal, 2)
	require.Len(t, created, 4)

	for _, listID := range plan.ListIDs() {
		items := h.items(t, listID)
		require.Len(t, items, 2)
		for _, item := range items {
			assert.Equal(t, "Tacos", item.MealName)
			assert.Equal(t, 2, item.Multiplier)
			assert.NotNil(t, item.IngredientID)
			assert.False(t, item.Obtained)
		}
	}

	adds := eventsOf(h.recorder.Deliveries(), enums.EventShoppingListItem, enums.ChangeTypeAdd)
	assert.Len(t, adds, 4, "one event per line item")
	assert.Equal(t, []uuid.UUID{owner}, adds[0].UserIDs)
	dto, ok := adds[0].Envelope.Data.(ItemDTO)
	require.True(t, ok)
	assert.Equal(t, "4", dto.TotalAmount)
}

func TestOnIngredientCreatedUsesListMinimum(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	tacos, tacoRecipe, _ := h.meal(t, owner, "Tacos", "tortilla")
	soup, _, _ := h.meal(t, owner, "Soup", "broth")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, tacos, 3)
	h.addMeal(t, plan, soup, 2)

	var created []models.ShoppingListItem
	h.do(t, func(unit *uow.Unit) error {
		ing := models.Ingredient{RecipeID: tacoRecipe.ID, Name: "salsa", Amount: "1", Unit: "jar"}
		if err := unit.Tx().Create(&ing).Error; err != nil {
			return err
		}
		var err error
		created, err = h.materializer.OnIngredientCreated(context.Background(), unit, ing)
		return err
	})
	require.Len(t, created, 1)
	assert.Equal(t, 2, created[0].Multiplier, "minimum multiplier already present in the list")
	assert.Equal(t, "Tacos", created[0].MealName)
}

func TestOnIngredientCreatedEmptyListDefaultsToOne(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, recipe, _ := h.meal(t, owner, "Salad")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, meal, 4)
	require.Empty(t, h.items(t, plan.ShoppingListID))

	var created []models.ShoppingListItem
	h.do(t, func(unit *uow.Unit) error {
		ing := models.Ingredient{RecipeID: recipe.ID, Name: "lettuce"}
		if err := unit.Tx().Create(&ing).Error; err != nil {
			return err
		}
		var err error
		created, err = h.materializer.OnIngredientCreated(context.Background(), unit, ing)
		return err
	})
	require.Len(t, created, 1)
	assert.Equal(t, 1, created[0].Multiplier)
}

func TestOnIngredientCreatedInstancePolicy(t *testing.T) {
	h := newHarness(t, config.MultiplierPolicyInstance)
	owner := uuid.New()
	tacos, tacoRecipe, _ := h.meal(t, owner, "Tacos", "tortilla")
	soup, _, _ := h.meal(t, owner, "Soup", "broth")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, tacos, 3)
	h.addMeal(t, plan, soup, 2)

	var created []models.ShoppingListItem
	h.do(t, func(unit *uow.Unit) error {
		ing := models.Ingredient{RecipeID: tacoRecipe.ID, Name: "salsa"}
		if err := unit.Tx().Create(&ing).Error; err != nil {
			return err
		}
		var err error
		created, err = h.materializer.OnIngredientCreated(context.Background(), unit, ing)
		return err
	})
	require.Len(t, created, 1)
	assert.Equal(t, 3, created[0].Multiplier)
}

func TestOnIngredientsCreatedEmitsOneBatchPerList(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, recipe, _ := h.meal(t, owner, "Tacos")
	plan := h.plan(t, owner, "Week 1", true)
	h.addMeal(t, plan, meal, 1)
	h.recorder.Reset()

	h.do(t, func(unit *uow.Unit) error {
		ings := []models.Ingredient{
			{RecipeID: recipe.ID, Name: "tortilla"},
			{RecipeID: recipe.ID, Name: "beef"},
			{RecipeID: recipe.ID, Name: "cheese"},
		}
		for i := range ings {
			if err := unit.Tx().Create(&ings[i]).Error; err != nil {
				return err
			}
		}
		_, err := h.materializer.OnIngredientsCreated(context.Background(), unit, ings)
		return err
	})

	deliveries := h.recorder.Deliveries()
	require.Len(t, deliveries, 2)
	for i, d := range deliveries {
		assert.Equal(t, enums.EventShoppingListItems, d.Envelope.EventName)
		batch, ok := d.Envelope.Data.(BatchDTO)
		require.True(t, ok)
		assert.Equal(t, plan.ListIDs()[i], batch.ShoppingListID)
		assert.Len(t, batch.Items, 3)
	}
}

func TestOnIngredientUpdatedPropagatesOnlyChangedFields(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, _, ings := h.meal(t, owner, "Tacos", "tortilla")
	plan := h.plan(t, owner, "Week 1", true)
	h.addMeal(t, plan, meal, 2)

	require.NoError(t, h.client.DB().Model(&models.ShoppingListItem{}).
		Where("shopping_list_id = ?", plan.ShoppingListID).
		Update("obtained", true).Error)

	ing := ings[0]
	ing.Name = "corn tortilla"
	ing.Unit = "dozen"
	h.recorder.Reset()
	h.do(t, func(unit *uow.Unit) error {
		_, err := h.materializer.OnIngredientUpdated(context.Background(), unit, ing, []string{"name"})
		return err
	})

	primary := h.items(t, plan.ShoppingListID)
	require.Len(t, primary, 1)
	assert.Equal(t, "corn tortilla", primary[0].Name)
	assert.Equal(t, "pcs", primary[0].Unit, "unchanged fields are left alone")
	assert.True(t, primary[0].Obtained)
	assert.Equal(t, 2, primary[0].Multiplier)
	assert.Len(t, eventsOf(h.recorder.Deliveries(), enums.EventShoppingListItem, enums.ChangeTypeUpdate), 2)

	h.recorder.Reset()
	h.do(t, func(unit *uow.Unit) error {
		_, err := h.materializer.OnIngredientUpdated(context.Background(), unit, ing, []string{"position"})
		return err
	})
	assert.Empty(t, h.recorder.Deliveries())
}

func TestOnIngredientDeletedRemovesDerivedItems(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, _, ings := h.meal(t, owner, "Tacos", "tortilla", "beef")
	plan := h.plan(t, owner, "Week 1", true)
	h.addMeal(t, plan, meal, 1)
	h.recorder.Reset()

	h.do(t, func(unit *uow.Unit) error {
		_, err := h.materializer.OnIngredientDeleted(context.Background(), unit, ings[0].ID)
		return err
	})
	for _, listID := range plan.ListIDs() {
		items := h.items(t, listID)
		require.Len(t, items, 1)
		assert.Equal(t, "beef", items[0].Name)
	}
	assert.Len(t, eventsOf(h.recorder.Deliveries(), enums.EventShoppingListItem, enums.ChangeTypeDelete), 2)
}

func TestOnMealRenamedRetagsItems(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, _, _ := h.meal(t, owner, "Tacos", "tortilla")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, meal, 1)

	meal.Name = "Street Tacos"
	h.do(t, func(unit *uow.Unit) error {
		_, err := h.materializer.OnMealRenamed(context.Background(), unit, meal, "Tacos")
		return err
	})
	items := h.items(t, plan.ShoppingListID)
	require.Len(t, items, 1)
	assert.Equal(t, "Street Tacos", items[0].MealName)

	h.do(t, func(unit *uow.Unit) error {
		removed, err := h.materializer.RemoveMeal(context.Background(), unit, plan, meal)
		assert.Len(t, removed, 1)
		return err
	})
	assert.Empty(t, h.items(t, plan.ShoppingListID))
}

func TestOnMealPlanRenamed(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	plan := h.plan(t, owner, "Week 1", true)
	h.recorder.Reset()

	h.do(t, func(unit *uow.Unit) error {
		lists, err := h.materializer.OnMealPlanRenamed(context.Background(), unit, plan, "Week 2")
		assert.Len(t, lists, 2)
		return err
	})
	lists, err := h.repo.ListsByIDs(context.Background(), plan.ListIDs())
	require.NoError(t, err)
	for _, list := range lists {
		assert.Equal(t, "Week 2 Mealplan", list.Name)
	}
	assert.Len(t, eventsOf(h.recorder.Deliveries(), enums.EventShoppingList, enums.ChangeTypeUpdate), 2)
}

func TestOnMealPlanDeletedNotifiesSharersBeforeRevoking(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	sharer := uuid.New()
	meal, _, _ := h.meal(t, owner, "Tacos", "tortilla")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, meal, 1)
	h.share(t, plan.ShoppingListID, sharer)
	h.recorder.Reset()

	h.do(t, func(unit *uow.Unit) error {
		return h.materializer.OnMealPlanDeleted(context.Background(), unit, plan)
	})

	var lists, shares, items int64
	require.NoError(t, h.client.DB().Model(&models.ShoppingList{}).Count(&lists).Error)
	require.NoError(t, h.client.DB().Model(&models.ShoppingListShare{}).Count(&shares).Error)
	require.NoError(t, h.client.DB().Model(&models.ShoppingListItem{}).Count(&items).Error)
	assert.Zero(t, lists)
	assert.Zero(t, shares)
	assert.Zero(t, items)

	deliveries := h.recorder.Deliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, enums.EventShoppingListItem, deliveries[0].Envelope.EventName)
	assert.Equal(t, enums.EventShoppingList, deliveries[1].Envelope.EventName)
	for _, d := range deliveries {
		assert.Equal(t, enums.ChangeTypeDelete, d.Envelope.Type)
		assert.ElementsMatch(t, []uuid.UUID{owner, sharer}, d.UserIDs)
	}
}

func TestSetInstanceMultiplier(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, _, _ := h.meal(t, owner, "Tacos", "tortilla", "beef")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, meal, 1)

	h.do(t, func(unit *uow.Unit) error {
		updated, err := h.materializer.SetInstanceMultiplier(context.Background(), unit, plan, meal, 3)
		assert.Len(t, updated, 2)
		return err
	})
	for _, item := range h.items(t, plan.ShoppingListID) {
		assert.Equal(t, 3, item.Multiplier)
	}

	err := h.runner.Do(context.Background(), func(unit *uow.Unit) error {
		_, err := h.materializer.SetInstanceMultiplier(context.Background(), unit, plan, meal, 0)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func itemsByName(items []models.ShoppingListItem) map[string]models.ShoppingListItem {
	out := make(map[string]models.ShoppingListItem, len(items))
	for _, item := range items {
		out[item.Name] = item
	}
	return out
}

func TestSameNamedMealsInOnePlanKeepTheirOwnItems(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	beefTacos, _, _ := h.meal(t, owner, "Tacos", "beef")
	chickenTacos, _, _ := h.meal(t, owner, "Tacos", "chicken")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, beefTacos, 1)
	h.addMeal(t, plan, chickenTacos, 3)
	salsa := models.ShoppingListItem{ShoppingListID: plan.ShoppingListID, Name: "salsa", MealName: "Tacos", Multiplier: 1}
	require.NoError(t, h.client.DB().Create(&salsa).Error)

	h.do(t, func(unit *uow.Unit) error {
		updated, err := h.materializer.SetInstanceMultiplier(context.Background(), unit, plan, beefTacos, 5)
		assert.Len(t, updated, 1)
		return err
	})
	items := itemsByName(h.items(t, plan.ShoppingListID))
	assert.Equal(t, 5, items["beef"].Multiplier)
	assert.Equal(t, 3, items["chicken"].Multiplier)
	assert.Equal(t, 1, items["salsa"].Multiplier)

	beefTacos.Name = "Burritos"
	require.NoError(t, h.client.DB().Save(&beefTacos).Error)
	h.do(t, func(unit *uow.Unit) error {
		renamed, err := h.materializer.OnMealRenamed(context.Background(), unit, beefTacos, "Tacos")
		assert.Len(t, renamed, 1)
		return err
	})
	items = itemsByName(h.items(t, plan.ShoppingListID))
	assert.Equal(t, "Burritos", items["beef"].MealName)
	assert.Equal(t, "Tacos", items["chicken"].MealName)
	assert.Equal(t, "Tacos", items["salsa"].MealName)

	h.do(t, func(unit *uow.Unit) error {
		removed, err := h.materializer.RemoveMeal(context.Background(), unit, plan, chickenTacos)
		assert.Len(t, removed, 2)
		return err
	})
	remaining := h.items(t, plan.ShoppingListID)
	require.Len(t, remaining, 1)
	assert.Equal(t, "beef", remaining[0].Name)
	assert.Equal(t, "Burritos", remaining[0].MealName)
}

func TestRemoveMealSparesSameNamedMeal(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	porkTacos, _, _ := h.meal(t, owner, "Tacos", "pork", "onion")
	fishTacos, _, _ := h.meal(t, owner, "Tacos", "cod")
	plan := h.plan(t, owner, "Week 1", true)
	h.addMeal(t, plan, porkTacos, 1)
	h.addMeal(t, plan, fishTacos, 2)
	limes := models.ShoppingListItem{ShoppingListID: plan.ShoppingListID, Name: "limes", MealName: "Tacos", Multiplier: 1}
	require.NoError(t, h.client.DB().Create(&limes).Error)

	h.do(t, func(unit *uow.Unit) error {
		removed, err := h.materializer.RemoveMeal(context.Background(), unit, plan, fishTacos)
		assert.Len(t, removed, 2, "cod in the primary list and the sub-list")
		return err
	})
	for _, listID := range plan.ListIDs() {
		for _, item := range h.items(t, listID) {
			assert.NotEqual(t, "cod", item.Name)
		}
	}
	assert.Len(t, h.items(t, plan.ShoppingListID), 3, "pork, onion and the manual limes stay")
}

func TestOnMealRenamedCarriesManualItemsOfAnUnambiguousMeal(t *testing.T) {
	h := newListMinHarness(t)
	owner := uuid.New()
	meal, _, _ := h.meal(t, owner, "Chili", "beans")
	plan := h.plan(t, owner, "Week 1", false)
	h.addMeal(t, plan, meal, 1)
	cornbread := models.ShoppingListItem{ShoppingListID: plan.ShoppingListID, Name: "cornbread", MealName: "Chili", Multiplier: 1}
	require.NoError(t, h.client.DB().Create(&cornbread).Error)

	meal.Name = "Texas Chili"
	h.do(t, func(unit *uow.Unit) error {
		renamed, err := h.materializer.OnMealRenamed(context.Background(), unit, meal, "Chili")
		assert.Len(t, renamed, 2)
		return err
	})
	for _, item := range h.items(t, plan.ShoppingListID) {
		assert.Equal(t, "Texas Chili", item.MealName)
	}
}

func TestNewMaterializerRejectsUnknownPolicy(t *testing.T) {
	_, err := NewMaterializer(MaterializerParams{Repo: &Repository{}, Audience: tableAudience{}, MultiplierPolicy: "max"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestScaledAmount(t *testing.T) {
	assert.Equal(t, "3", ScaledAmount("1.5", 2))
	assert.Equal(t, "a pinch", ScaledAmount("a pinch", 3))
	assert.Equal(t, "", ScaledAmount("  ", 2))
	assert.Equal(t, "0.25", ScaledAmount("0.25", 1))
}
