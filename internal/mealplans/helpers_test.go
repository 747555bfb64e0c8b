package mealplans

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealshare-backend/internal/notifications"
	"github.com/angelmondragon/mealshare-backend/internal/recipes"
	"github.com/angelmondragon/mealshare-backend/internal/sharing"
	"github.com/angelmondragon/mealshare-backend/internal/shoppinglists"
	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/internal/users"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
)

type harness struct {
	client   *db.Client
	recorder *realtime.Recorder
	lists    *shoppinglists.Repository
	sharing  *sharing.Directory
	recipes  recipes.Service
	svc      Service
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
	share, err := sharing.NewDirectory(sharing.Params{
		Runner:   runner,
		Repo:     sharing.NewRepository(client.DB()),
		Users:    userDir,
		Notifier: notifier,
		Logger:   logg,
	})
	require.NoError(t, err)

	lists := shoppinglists.NewRepository(client.DB())
	materializer, err := shoppinglists.NewMaterializer(shoppinglists.MaterializerParams{
		Repo:     lists,
		Audience: share,
		Logger:   logg,
	})
	require.NoError(t, err)

	repo := NewRepository(client.DB())
	detacher, err := NewDetacher(repo, materializer)
	require.NoError(t, err)
	recipeSvc, err := recipes.NewService(recipes.ServiceParams{
		Runner:       runner,
		Repo:         recipes.NewRepository(client.DB()),
		Materializer: materializer,
		Access:       share,
		Plans:        detacher,
		Logger:       logg,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Runner:       runner,
		Repo:         repo,
		Materializer: materializer,
		Access:       share,
		Logger:       logg,
	})
	require.NoError(t, err)

	return &harness{client: client, recorder: recorder, lists: lists, sharing: share, recipes: recipeSvc, svc: svc}
}

func (h *harness) user(t *testing.T, username string) models.User {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com", PasswordHash: "hash"}
	require.NoError(t, h.client.DB().Create(&u).Error)
	return u
}

// meal creates a meal with a recipe holding the given ingredients.
func (h *harness) meal(t *testing.T, owner uuid.UUID, name string, ingredients ...recipes.IngredientInput) *recipes.MealDTO {
	t.Helper()
	ctx := context.Background()
	meal, err := h.recipes.CreateMeal(ctx, owner, recipes.CreateMealInput{Name: name})
	require.NoError(t, err)
	_, err = h.recipes.CreateRecipe(ctx, owner, meal.ID, recipes.CreateRecipeInput{Name: name})
	require.NoError(t, err)
	if len(ingredients) > 0 {
		_, err = h.recipes.AddIngredients(ctx, owner, meal.ID, ingredients)
		require.NoError(t, err)
	}
	return meal
}

func (h *harness) items(t *testing.T, listID uuid.UUID) []models.ShoppingListItem {
	t.Helper()
	items, err := h.lists.Items(context.Background(), listID)
	require.NoError(t, err)
	return items
}

func (h *harness) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func eventsOf(deliveries []realtime.Delivery, event enums.EventName, changeType enums.ChangeType) []realtime.Delivery {
	var out []realtime.Delivery
	for _, d := range deliveries {
		if d.Envelope.EventName == event && d.Envelope.Type == changeType {
			out = append(out, d)
		}
	}
	return out
}
