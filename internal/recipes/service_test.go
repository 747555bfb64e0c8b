package recipes

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/pagination"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
)

type recordingMaterializer struct {
	created  []models.Ingredient
	batches  [][]models.Ingredient
	updated  map[uuid.UUID][]string
	deleted  []uuid.UUID
	renamed  []string
	failNext bool
}

func (m *recordingMaterializer) OnIngredientCreated(_ context.Context, _ *uow.Unit, ing models.Ingredient) ([]models.ShoppingListItem, error) {
	if m.failNext {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materializer down")
	}
	m.created = append(m.created, ing)
	return nil, nil
}

func (m *recordingMaterializer) OnIngredientsCreated(_ context.Context, _ *uow.Unit, ings []models.Ingredient) ([]models.ShoppingListItem, error) {
	m.batches = append(m.batches, ings)
	return nil, nil
}

func (m *recordingMaterializer) OnIngredientUpdated(_ context.Context, _ *uow.Unit, ing models.Ingredient, changed []string) ([]models.ShoppingListItem, error) {
	if m.updated == nil {
		m.updated = map[uuid.UUID][]string{}
	}
	m.updated[ing.ID] = changed
	return nil, nil
}

func (m *recordingMaterializer) OnIngredientDeleted(_ context.Context, _ *uow.Unit, id uuid.UUID) ([]models.ShoppingListItem, error) {
	m.deleted = append(m.deleted, id)
	return nil, nil
}

func (m *recordingMaterializer) OnMealRenamed(_ context.Context, _ *uow.Unit, meal models.Meal, oldName string) ([]models.ShoppingListItem, error) {
	m.renamed = append(m.renamed, oldName+"->"+meal.Name)
	return nil, nil
}

type mapAccess struct {
	shared  map[uuid.UUID]map[uuid.UUID]bool
	revoked []uuid.UUID
}

func (a *mapAccess) share(mealID, userID uuid.UUID) {
	if a.shared == nil {
		a.shared = map[uuid.UUID]map[uuid.UUID]bool{}
	}
	if a.shared[mealID] == nil {
		a.shared[mealID] = map[uuid.UUID]bool{}
	}
	a.shared[mealID][userID] = true
}

func (a *mapAccess) IsMealShared(_ context.Context, _ *uow.Unit, mealID, userID uuid.UUID) (bool, error) {
	return a.shared[mealID][userID], nil
}

func (a *mapAccess) RevokeMeal(_ context.Context, _ *uow.Unit, mealID uuid.UUID) error {
	a.revoked = append(a.revoked, mealID)
	return nil
}

type recordingDetacher struct {
	detached []uuid.UUID
}

func (d *recordingDetacher) DetachMealEverywhere(_ context.Context, _ *uow.Unit, meal models.Meal) error {
	d.detached = append(d.detached, meal.ID)
	return nil
}

type harness struct {
	client       *db.Client
	materializer *recordingMaterializer
	access       *mapAccess
	plans        *recordingDetacher
	svc          Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	runner, err := uow.NewRunner(client, &realtime.Recorder{}, logg)
	require.NoError(t, err)

	h := &harness{
		client:       client,
		materializer: &recordingMaterializer{},
		access:       &mapAccess{},
		plans:        &recordingDetacher{},
	}
	h.svc, err = NewService(ServiceParams{
		Runner:       runner,
		Repo:         NewRepository(client.DB()),
		Materializer: h.materializer,
		Access:       h.access,
		Plans:        h.plans,
		Logger:       logg,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) mealWithRecipe(t *testing.T, owner uuid.UUID, name string) *MealDTO {
	t.Helper()
	meal, err := h.svc.CreateMeal(context.Background(), owner, CreateMealInput{Name: name})
	require.NoError(t, err)
	_, err = h.svc.CreateRecipe(context.Background(), owner, meal.ID, CreateRecipeInput{})
	require.NoError(t, err)
	return meal
}

func strPtr(s string) *string { return &s }

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestCreateRecipeOncePerMeal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")

	_, err := h.svc.CreateRecipe(ctx, owner, meal.ID, CreateRecipeInput{Name: "Again"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	got, err := h.svc.GetMeal(ctx, owner, meal.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Recipe)
	assert.Equal(t, "Tacos", got.Recipe.Name)
}

func TestGetMealHiddenFromStrangers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")

	_, err := h.svc.GetMeal(ctx, uuid.New(), meal.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	friend := uuid.New()
	h.access.share(meal.ID, friend)
	got, err := h.svc.GetMeal(ctx, friend, meal.ID)
	require.NoError(t, err)
	assert.Equal(t, meal.ID, got.ID)
}

func TestAddIngredientsAssignsPositionsAndBatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")

	out, err := h.svc.AddIngredients(ctx, owner, meal.ID, []IngredientInput{
		{Name: "Beef", Amount: "1", Unit: "lb"},
		{Name: "Salt"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Position)
	assert.Equal(t, 1, out[1].Position)
	require.Len(t, h.materializer.batches, 1)
	assert.Len(t, h.materializer.batches[0], 2)

	one, err := h.svc.AddIngredient(ctx, owner, meal.ID, IngredientInput{Name: "Cheese"})
	require.NoError(t, err)
	assert.Equal(t, 2, one.Position)
	require.Len(t, h.materializer.created, 1)
	assert.Equal(t, "Cheese", h.materializer.created[0].Name)
}

func TestAddIngredientRequiresRecipeAndName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal, err := h.svc.CreateMeal(ctx, owner, CreateMealInput{Name: "Soup"})
	require.NoError(t, err)

	_, err = h.svc.AddIngredient(ctx, owner, meal.ID, IngredientInput{Name: "Broth"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.CreateRecipe(ctx, owner, meal.ID, CreateRecipeInput{})
	require.NoError(t, err)
	_, err = h.svc.AddIngredients(ctx, owner, meal.ID, []IngredientInput{{Name: "Broth"}, {Name: " "}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	got, err := h.svc.GetMeal(ctx, owner, meal.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Recipe.Ingredients, "failed batch leaves nothing behind")
}

func TestMaterializerFailureRollsBackIngredient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")
	h.materializer.failNext = true

	_, err := h.svc.AddIngredient(ctx, owner, meal.ID, IngredientInput{Name: "Beef"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var n int64
	require.NoError(t, h.client.DB().Model(&models.Ingredient{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateIngredientReportsOnlyChangedFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")
	ing, err := h.svc.AddIngredient(ctx, owner, meal.ID, IngredientInput{Name: "Beef", Amount: "1", Unit: "lb"})
	require.NoError(t, err)

	updated, err := h.svc.UpdateIngredient(ctx, owner, ing.ID, UpdateIngredientInput{
		Name:   strPtr("Beef"),
		Amount: strPtr("2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2", updated.Amount)
	assert.Equal(t, []string{"amount"}, h.materializer.updated[ing.ID])

	_, err = h.svc.UpdateIngredient(ctx, owner, ing.ID, UpdateIngredientInput{Name: strPtr("")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSharerMayEditRecipeButNotMeal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	friend := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")
	h.access.share(meal.ID, friend)

	_, err := h.svc.AddIngredient(ctx, friend, meal.ID, IngredientInput{Name: "Salsa"})
	require.NoError(t, err)

	_, err = h.svc.RenameMeal(ctx, friend, meal.ID, "Mine")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	err = h.svc.DeleteMeal(ctx, friend, meal.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestRenameMealNotifiesMaterializer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")

	renamed, err := h.svc.RenameMeal(ctx, owner, meal.ID, "Fish Tacos")
	require.NoError(t, err)
	assert.Equal(t, "Fish Tacos", renamed.Name)
	assert.Equal(t, []string{"Tacos->Fish Tacos"}, h.materializer.renamed)

	_, err = h.svc.UpdateMeal(ctx, owner, meal.ID, UpdateMealInput{Description: strPtr("crispy")})
	require.NoError(t, err)
	assert.Len(t, h.materializer.renamed, 1, "description change does not retag items")
}

func TestDeleteMealCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")
	ings, err := h.svc.AddIngredients(ctx, owner, meal.ID, []IngredientInput{{Name: "Beef"}, {Name: "Salt"}})
	require.NoError(t, err)
	_, err = h.svc.AddStep(ctx, owner, meal.ID, StepInput{Body: "Cook"})
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteMeal(ctx, owner, meal.ID))

	assert.Equal(t, []uuid.UUID{meal.ID}, h.access.revoked)
	assert.Equal(t, []uuid.UUID{meal.ID}, h.plans.detached)
	assert.ElementsMatch(t, []uuid.UUID{ings[0].ID, ings[1].ID}, h.materializer.deleted)
	for _, model := range []any{&models.Meal{}, &models.Recipe{}, &models.Ingredient{}, &models.Step{}} {
		var n int64
		require.NoError(t, h.client.DB().Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestDeleteIngredientAndStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	meal := h.mealWithRecipe(t, owner, "Tacos")
	section, err := h.svc.AddStepSection(ctx, owner, meal.ID, SectionInput{Name: "Prep"})
	require.NoError(t, err)
	step, err := h.svc.AddStep(ctx, owner, meal.ID, StepInput{SectionID: &section.ID, Body: "Chop"})
	require.NoError(t, err)
	ing, err := h.svc.AddIngredient(ctx, owner, meal.ID, IngredientInput{Name: "Onion"})
	require.NoError(t, err)

	_, err = h.svc.AddIngredient(ctx, owner, meal.ID, IngredientInput{Name: "Lime", SectionID: &section.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "step sections do not hold ingredients")

	require.NoError(t, h.svc.DeleteIngredient(ctx, owner, ing.ID))
	assert.Equal(t, []uuid.UUID{ing.ID}, h.materializer.deleted)
	require.NoError(t, h.svc.DeleteStep(ctx, owner, step.ID))

	err = h.svc.DeleteStep(ctx, owner, step.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListMealsIncludesShared(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	viewer := uuid.New()
	mine := h.mealWithRecipe(t, viewer, "Soup")
	theirs := h.mealWithRecipe(t, owner, "Tacos")
	h.mealWithRecipe(t, owner, "Secret")
	require.NoError(t, h.client.DB().Create(&models.MealShare{MealID: theirs.ID, UserID: viewer}).Error)

	page, err := h.svc.ListMeals(ctx, viewer, pagination.Params{Limit: 10})
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, m := range page.Items {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{mine.ID, theirs.ID}, ids)
	assert.Empty(t, page.Cursor)

	_, err = h.svc.ListMeals(ctx, viewer, pagination.Params{Limit: 10, Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
