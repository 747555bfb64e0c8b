package shoppinglists

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
)

// tableAudience reads owners and share edges straight from the store.
type tableAudience struct{}

func (tableAudience) ShoppingListAudience(ctx context.Context, unit *uow.Unit, listID uuid.UUID) ([]uuid.UUID, error) {
	var list models.ShoppingList
	if err := unit.Tx().WithContext(ctx).First(&list, "id = ?", listID).Error; err != nil {
		return nil, err
	}
	var sharers []uuid.UUID
	if err := unit.Tx().WithContext(ctx).Model(&models.ShoppingListShare{}).
		Where("shopping_list_id = ?", listID).
		Order("created_at ASC").
		Pluck("user_id", &sharers).Error; err != nil {
		return nil, err
	}
	return append([]uuid.UUID{list.OwnerID}, sharers...), nil
}

func (tableAudience) IsShoppingListShared(ctx context.Context, unit *uow.Unit, listID, userID uuid.UUID) (bool, error) {
	var n int64
	err := unit.Tx().WithContext(ctx).Model(&models.ShoppingListShare{}).
		Where("shopping_list_id = ? AND user_id = ?", listID, userID).
		Count(&n).Error
	return n > 0, err
}

func (tableAudience) RevokeShoppingList(ctx context.Context, unit *uow.Unit, listID uuid.UUID) error {
	return unit.Tx().WithContext(ctx).Where("shopping_list_id = ?", listID).Delete(&models.ShoppingListShare{}).Error
}

type harness struct {
	client       *db.Client
	runner       *uow.Runner
	recorder     *realtime.Recorder
	repo         *Repository
	materializer *Materializer
	svc          Service
}

func newHarness(t *testing.T, policy string) *harness {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	recorder := &realtime.Recorder{}
	runner, err := uow.NewRunner(client, recorder, logg)
	require.NoError(t, err)

	repo := NewRepository(client.DB())
	materializer, err := NewMaterializer(MaterializerParams{
		Repo:             repo,
		Audience:         tableAudience{},
		MultiplierPolicy: policy,
		Logger:           logg,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Runner:       runner,
		Repo:         repo,
		Materializer: materializer,
		Audience:     tableAudience{},
		Logger:       logg,
	})
	require.NoError(t, err)
	return &harness{client: client, runner: runner, recorder: recorder, repo: repo, materializer: materializer, svc: svc}
}

func newListMinHarness(t *testing.T) *harness {
	return newHarness(t, config.MultiplierPolicyListMin)
}

// meal creates a meal with a recipe and the named ingredients.
func (h *harness) meal(t *testing.T, owner uuid.UUID, name string, ingredients ...string) (models.Meal, models.Recipe, []models.Ingredient) {
	t.Helper()
	meal := models.Meal{OwnerID: owner, Name: name}
	require.NoError(t, h.client.DB().Create(&meal).Error)
	recipe := models.Recipe{MealID: meal.ID, Name: name}
	require.NoError(t, h.client.DB().Create(&recipe).Error)

	var rows []models.Ingredient
	for i, ing := range ingredients {
		row := models.Ingredient{RecipeID: recipe.ID, Name: ing, Amount: "2", Unit: "pcs", Category: "produce", Position: i}
		require.NoError(t, h.client.DB().Create(&row).Error)
		rows = append(rows, row)
	}
	return meal, recipe, rows
}

// plan creates a plan and its lists through the materializer.
func (h *harness) plan(t *testing.T, owner uuid.UUID, name string, withSub bool) models.MealPlan {
	t.Helper()
	plan := models.MealPlan{ID: uuid.New(), OwnerID: owner, Name: name}
	h.do(t, func(unit *uow.Unit) error {
		if _, err := h.materializer.CreatePlanLists(context.Background(), unit, &plan, withSub); err != nil {
			return err
		}
		return unit.Tx().Create(&plan).Error
	})
	return plan
}

// addMeal links the meal to the plan and materializes it.
func (h *harness) addMeal(t *testing.T, plan models.MealPlan, meal models.Meal, multiplier int) []models.ShoppingListItem {
	t.Helper()
	var items []models.ShoppingListItem
	h.do(t, func(unit *uow.Unit) error {
		member := models.MealPlanMeal{MealPlanID: plan.ID, MealID: meal.ID, Multiplier: multiplier}
		if err := unit.Tx().Create(&member).Error; err != nil {
			return err
		}
		var err error
		items, err = h.materializer.MaterializeMeal(context.Background(), unit, plan, meal, multiplier)
		return err
	})
	return items
}

func (h *harness) do(t *testing.T, fn func(unit *uow.Unit) error) {
	t.Helper()
	require.NoError(t, h.runner.Do(context.Background(), fn))
}

func (h *harness) items(t *testing.T, listID uuid.UUID) []models.ShoppingListItem {
	t.Helper()
	items, err := h.repo.Items(context.Background(), listID)
	require.NoError(t, err)
	return items
}

func (h *harness) share(t *testing.T, listID, userID uuid.UUID) {
	t.Helper()
	require.NoError(t, h.client.DB().Create(&models.ShoppingListShare{ShoppingListID: listID, UserID: userID}).Error)
}
