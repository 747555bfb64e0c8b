package sharing

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealshare-backend/internal/notifications"
	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/internal/users"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
)

type harness struct {
	client   *db.Client
	runner   *uow.Runner
	recorder *realtime.Recorder
	dir      *Directory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	recorder := &realtime.Recorder{}
	runner, err := uow.NewRunner(client, recorder, logg)
	require.NoError(t, err)

	userDir, err := users.NewDirectory(users.NewRepository(client.DB()))
	require.NoError(t, err)
	notifier, err := notifications.NewNotifier(notifications.NewRepository(client.DB()))
	require.NoError(t, err)

	dir, err := NewDirectory(Params{
		Runner:   runner,
		Repo:     NewRepository(client.DB()),
		Users:    userDir,
		Notifier: notifier,
		Logger:   logg,
	})
	require.NoError(t, err)
	return &harness{client: client, runner: runner, recorder: recorder, dir: dir}
}

func (h *harness) user(t *testing.T, username string) models.User {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com", PasswordHash: "hash"}
	require.NoError(t, h.client.DB().Create(&u).Error)
	return u
}

func (h *harness) plan(t *testing.T, owner uuid.UUID, name string) models.MealPlan {
	t.Helper()
	plan := models.MealPlan{ID: uuid.New(), OwnerID: owner, Name: name}
	primary := models.ShoppingList{OwnerID: owner, Name: name + " Mealplan", MealPlanID: &plan.ID}
	require.NoError(t, h.client.DB().Create(&primary).Error)
	sub := models.ShoppingList{OwnerID: owner, Name: name + " Mealplan", MealPlanID: &plan.ID, IsSublist: true}
	require.NoError(t, h.client.DB().Create(&sub).Error)
	plan.ShoppingListID = primary.ID
	plan.SubListID = &sub.ID
	require.NoError(t, h.client.DB().Create(&plan).Error)
	return plan
}

func (h *harness) list(t *testing.T, owner uuid.UUID, name string) models.ShoppingList {
	t.Helper()
	list := models.ShoppingList{OwnerID: owner, Name: name}
	require.NoError(t, h.client.DB().Create(&list).Error)
	return list
}

func (h *harness) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func (h *harness) audience(t *testing.T, listID uuid.UUID) []uuid.UUID {
	t.Helper()
	var out []uuid.UUID
	require.NoError(t, h.runner.Do(context.Background(), func(unit *uow.Unit) error {
		var err error
		out, err = h.dir.ShoppingListAudience(context.Background(), unit, listID)
		return err
	}))
	return out
}

func TestShareShoppingListIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	list := h.list(t, alice.ID, "Groceries")

	require.NoError(t, h.dir.ShareShoppingList(ctx, alice.ID, list.ID, "Bob"))
	require.NoError(t, h.dir.ShareShoppingList(ctx, alice.ID, list.ID, "bob"))

	assert.EqualValues(t, 1, h.count(t, &models.ShoppingListShare{}, "shopping_list_id = ?", list.ID))
	assert.EqualValues(t, 1, h.count(t, &models.Notification{}, "user_id = ? AND category = ?", bob.ID, enums.NotificationCategoryShoppingList))
	assert.Equal(t, []uuid.UUID{alice.ID, bob.ID}, h.audience(t, list.ID))

	var notifs, listAdds int
	for _, d := range h.recorder.Deliveries() {
		assert.Equal(t, []uuid.UUID{bob.ID}, d.UserIDs)
		switch d.Envelope.EventName {
		case enums.EventNotification:
			notifs++
		case enums.EventShoppingList:
			listAdds++
			assert.Equal(t, enums.ChangeTypeAdd, d.Envelope.Type)
		}
	}
	assert.Equal(t, 1, notifs)
	assert.Equal(t, 1, listAdds)
}

func TestShareRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	carol := h.user(t, "carol")
	list := h.list(t, alice.ID, "Groceries")

	err := h.dir.ShareShoppingList(ctx, alice.ID, list.ID, "alice")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "self share: %v", err)

	err = h.dir.ShareShoppingList(ctx, alice.ID, list.ID, "nobody")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unknown user: %v", err)

	err = h.dir.ShareShoppingList(ctx, alice.ID, uuid.New(), "bob")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unknown list: %v", err)

	err = h.dir.ShareShoppingList(ctx, carol.ID, list.ID, "bob")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "stranger: %v", err)

	require.NoError(t, h.dir.ShareShoppingList(ctx, alice.ID, list.ID, "bob"))
	err = h.dir.ShareShoppingList(ctx, bob.ID, list.ID, "carol")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "sharer: %v", err)
}

func TestShareMealPlanGrantsLists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	plan := h.plan(t, alice.ID, "Week 1")

	require.NoError(t, h.dir.ShareMealPlan(ctx, alice.ID, plan.ID, "bob"))

	for _, listID := range plan.ListIDs() {
		assert.Contains(t, h.audience(t, listID), bob.ID)
	}
	assert.EqualValues(t, 1, h.count(t, &models.MealPlanShare{}, "meal_plan_id = ? AND user_id = ?", plan.ID, bob.ID))

	var n models.Notification
	require.NoError(t, h.client.DB().Where("user_id = ?", bob.ID).First(&n).Error)
	assert.Equal(t, enums.NotificationCategoryMealPlan, n.Category)
	require.NotNil(t, n.ResourceID)
	assert.Equal(t, plan.ID, *n.ResourceID)
	assert.Contains(t, n.Message, "Week 1")

	require.NoError(t, h.runner.Do(ctx, func(unit *uow.Unit) error {
		ok, err := h.dir.CanViewMealPlan(ctx, unit, plan.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = h.dir.CanViewShoppingList(ctx, unit, plan.ShoppingListID, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestUnshare(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	h.user(t, "carol")
	plan := h.plan(t, alice.ID, "Week 1")

	err := h.dir.UnshareMealPlan(ctx, alice.ID, plan.ID, "carol")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "missing edge: %v", err)

	require.NoError(t, h.dir.ShareMealPlan(ctx, alice.ID, plan.ID, "bob"))
	h.recorder.Reset()

	require.NoError(t, h.dir.UnshareMealPlan(ctx, alice.ID, plan.ID, "bob"))
	assert.EqualValues(t, 0, h.count(t, &models.MealPlanShare{}, "user_id = ?", bob.ID))
	assert.EqualValues(t, 0, h.count(t, &models.ShoppingListShare{}, "user_id = ?", bob.ID))
	assert.Equal(t, []uuid.UUID{alice.ID}, h.audience(t, plan.ShoppingListID))

	deliveries := h.recorder.Deliveries()
	require.Len(t, deliveries, 2)
	for _, d := range deliveries {
		assert.Equal(t, []uuid.UUID{bob.ID}, d.UserIDs)
		assert.Equal(t, enums.ChangeTypeDelete, d.Envelope.Type)
	}

	err = h.dir.UnshareMealPlan(ctx, alice.ID, plan.ID, "bob")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRevokeAndSharers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")
	h.user(t, "bob")
	h.user(t, "carol")
	meal := models.Meal{OwnerID: alice.ID, Name: "Tacos"}
	require.NoError(t, h.client.DB().Create(&meal).Error)

	require.NoError(t, h.dir.ShareMeal(ctx, alice.ID, meal.ID, "carol"))
	require.NoError(t, h.dir.ShareMeal(ctx, alice.ID, meal.ID, "bob"))

	sharers, err := h.dir.Sharers(ctx, KindMeal, alice.ID, meal.ID)
	require.NoError(t, err)
	require.Len(t, sharers, 2)
	assert.Equal(t, "bob", sharers[0].Username)

	_, err = h.dir.Sharers(ctx, KindMeal, uuid.New(), meal.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, h.runner.Do(ctx, func(unit *uow.Unit) error {
		return h.dir.RevokeMeal(ctx, unit, meal.ID)
	}))
	assert.EqualValues(t, 0, h.count(t, &models.MealShare{}, "meal_id = ?", meal.ID))
}
