package shoppinglists

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

func TestServiceCreateAndGetList(t *testing.T) {
	h := newListMinHarness(t)
	ctx := context.Background()
	owner := uuid.New()

	list, err := h.svc.CreateList(ctx, owner, CreateListInput{Name: "  Groceries "})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", list.Name)
	assert.Nil(t, list.MealPlanID)

	got, err := h.svc.GetList(ctx, owner, list.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)

	_, err = h.svc.GetList(ctx, uuid.New(), list.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "strangers must not learn the list exists")

	sharer := uuid.New()
	h.share(t, list.ID, sharer)
	_, err = h.svc.GetList(ctx, sharer, list.ID)
	assert.NoError(t, err)

	_, err = h.svc.CreateList(ctx, owner, CreateListInput{Name: " "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceManualItems(t *testing.T) {
	h := newListMinHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	sharer := uuid.New()

	list, err := h.svc.CreateList(ctx, owner, CreateListInput{Name: "Groceries"})
	require.NoError(t, err)
	h.share(t, list.ID, sharer)
	h.recorder.Reset()

	item, err := h.svc.AddItem(ctx, sharer, list.ID, ItemInput{Name: "milk", Amount: "1", Unit: "l"})
	require.NoError(t, err)
	assert.Equal(t, 1, item.Multiplier)
	assert.Nil(t, item.IngredientID)

	deliveries := h.recorder.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, []uuid.UUID{owner, sharer}, deliveries[0].UserIDs)

	h.recorder.Reset()
	items, err := h.svc.AddItems(ctx, owner, list.ID, []ItemInput{{Name: "eggs"}, {Name: "bread"}})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	deliveries = h.recorder.Deliveries()
	require.Len(t, deliveries, 1, "bulk add emits one batched event")
	assert.Equal(t, enums.EventShoppingListItems, deliveries[0].Envelope.EventName)

	updated, err := h.svc.SetObtained(ctx, sharer, list.ID, item.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Obtained)

	zero := 0
	_, err = h.svc.UpdateItem(ctx, owner, list.ID, item.ID, UpdateItemInput{Multiplier: &zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, h.svc.DeleteItem(ctx, owner, list.ID, item.ID))
	err = h.svc.DeleteItem(ctx, owner, list.ID, item.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.AddItem(ctx, uuid.New(), list.ID, ItemInput{Name: "chips"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceDeleteList(t *testing.T) {
	h := newListMinHarness(t)
	ctx := context.Background()
	owner := uuid.New()
	sharer := uuid.New()

	list, err := h.svc.CreateList(ctx, owner, CreateListInput{Name: "Groceries"})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, owner, list.ID, ItemInput{Name: "milk"})
	require.NoError(t, err)
	h.share(t, list.ID, sharer)

	err = h.svc.DeleteList(ctx, sharer, list.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	h.recorder.Reset()
	require.NoError(t, h.svc.DeleteList(ctx, owner, list.ID))

	var lists, shares int64
	require.NoError(t, h.client.DB().Model(&models.ShoppingList{}).Count(&lists).Error)
	require.NoError(t, h.client.DB().Model(&models.ShoppingListShare{}).Count(&shares).Error)
	assert.Zero(t, lists)
	assert.Zero(t, shares)
	for _, d := range h.recorder.Deliveries() {
		assert.ElementsMatch(t, []uuid.UUID{owner, sharer}, d.UserIDs)
	}

	plan := h.plan(t, owner, "Week 1", false)
	err = h.svc.DeleteList(ctx, owner, plan.ShoppingListID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
