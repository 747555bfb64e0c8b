package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/mealshare-backend/api/controllers"
	"github.com/angelmondragon/mealshare-backend/api/middleware"
	"github.com/angelmondragon/mealshare-backend/internal/auth"
	"github.com/angelmondragon/mealshare-backend/internal/friends"
	"github.com/angelmondragon/mealshare-backend/internal/mealplans"
	"github.com/angelmondragon/mealshare-backend/internal/notifications"
	"github.com/angelmondragon/mealshare-backend/internal/recipes"
	"github.com/angelmondragon/mealshare-backend/internal/sharing"
	"github.com/angelmondragon/mealshare-backend/internal/shoppinglists"
	"github.com/angelmondragon/mealshare-backend/pkg/auth/session"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/metrics"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
	"github.com/angelmondragon/mealshare-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) (int, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	hub *realtime.Hub,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	recipeService recipes.Service,
	mealPlanService mealplans.Service,
	shoppingListService shoppinglists.Service,
	shareService controllers.ShareService,
	friendsService friends.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	if cfg.App.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(
		middleware.Recoverer(logg, httpMetrics),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readyDeps := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		readyDeps["redis"] = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		loginPolicy := middleware.NewAuthRateLimitPolicy(
			"login",
			cfg.AuthRateLimit.LoginWindow,
			cfg.AuthRateLimit.LoginIPLimit,
			cfg.AuthRateLimit.LoginUserLimit,
		)
		registerPolicy := middleware.NewAuthRateLimitPolicy(
			"register",
			cfg.AuthRateLimit.RegisterWindow,
			cfg.AuthRateLimit.RegisterIPLimit,
			cfg.AuthRateLimit.RegisterUserLimit,
		)
		login := controllers.AuthLogin(authService, logg)
		register := controllers.AuthRegister(registerService, authService, logg)
		if redisClient != nil {
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", login)
			r.With(
				middleware.AuthRateLimit(registerPolicy, redisClient, logg),
				middleware.Idempotency(redisClient, logg),
			).Post("/register", register)
		} else {
			r.Post("/login", login)
			r.Post("/register", register)
		}
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		r.With(middleware.Auth(cfg.JWT, sessionManager, logg)).
			Post("/logout-all", controllers.AuthLogoutAll(sessionManager, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		if redisClient != nil {
			r.Use(middleware.UserRateLimit(redisClient, cfg.APIRateLimit.UserLimit, cfg.APIRateLimit.Window, logg))
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		if hub != nil {
			r.Get("/realtime", controllers.RealtimeSocket(hub, cfg.Realtime, cfg.App.CORSOrigins, logg))
		}

		r.Route("/meals", func(r chi.Router) {
			r.Get("/", controllers.ListMeals(recipeService, logg))
			r.Post("/", controllers.CreateMeal(recipeService, logg))
			r.Route("/{mealId}", func(r chi.Router) {
				r.Get("/", controllers.GetMeal(recipeService, logg))
				r.Patch("/", controllers.UpdateMeal(recipeService, logg))
				r.Delete("/", controllers.DeleteMeal(recipeService, logg))
				shareRoutes(r, shareService, sharing.KindMeal, "mealId", logg)

				r.Route("/recipe", func(r chi.Router) {
					r.Post("/", controllers.CreateRecipe(recipeService, logg))
					r.Post("/ingredients", controllers.AddIngredient(recipeService, logg))
					r.Post("/ingredients/multiple", controllers.AddIngredients(recipeService, logg))
					r.Post("/ingredient-sections", controllers.AddIngredientSection(recipeService, logg))
					r.Post("/step-sections", controllers.AddStepSection(recipeService, logg))
					r.Post("/steps", controllers.AddStep(recipeService, logg))
				})
			})
		})
		r.Patch("/ingredients/{ingredientId}", controllers.UpdateIngredient(recipeService, logg))
		r.Delete("/ingredients/{ingredientId}", controllers.DeleteIngredient(recipeService, logg))
		r.Delete("/steps/{stepId}", controllers.DeleteStep(recipeService, logg))

		r.Route("/mealplans", func(r chi.Router) {
			r.Get("/", controllers.ListMealPlans(mealPlanService, logg))
			r.Post("/", controllers.CreateMealPlan(mealPlanService, logg))
			r.Route("/{planId}", func(r chi.Router) {
				r.Get("/", controllers.GetMealPlan(mealPlanService, logg))
				r.Patch("/", controllers.RenameMealPlan(mealPlanService, logg))
				r.Delete("/", controllers.DeleteMealPlan(mealPlanService, logg))
				r.Post("/meals", controllers.AddMealToPlan(mealPlanService, logg))
				r.Patch("/meals/{mealId}", controllers.SetPlanMealMultiplier(mealPlanService, logg))
				r.Delete("/meals/{mealId}", controllers.RemoveMealFromPlan(mealPlanService, logg))
				shareRoutes(r, shareService, sharing.KindMealPlan, "planId", logg)
			})
		})

		r.Route("/shoppinglists", func(r chi.Router) {
			r.Post("/", controllers.CreateShoppingList(shoppingListService, logg))
			r.Route("/{listId}", func(r chi.Router) {
				r.Get("/", controllers.GetShoppingList(shoppingListService, logg))
				r.Delete("/", controllers.DeleteShoppingList(shoppingListService, logg))
				r.Post("/items", controllers.AddShoppingListItem(shoppingListService, logg))
				r.Post("/items/multiple", controllers.AddShoppingListItems(shoppingListService, logg))
				r.Patch("/items/{itemId}", controllers.UpdateShoppingListItem(shoppingListService, logg))
				r.Delete("/items/{itemId}", controllers.DeleteShoppingListItem(shoppingListService, logg))
				shareRoutes(r, shareService, sharing.KindShoppingList, "listId", logg)
			})
		})

		r.Route("/friends", func(r chi.Router) {
			r.Get("/", controllers.ListFriends(friendsService, logg))
			r.Post("/requests", controllers.SendFriendRequest(friendsService, logg))
			r.Post("/requests/{userId}/accept", controllers.AcceptFriendRequest(friendsService, logg))
			r.Post("/requests/{userId}/decline", controllers.DeclineFriendRequest(friendsService, logg))
			r.Delete("/requests/{userId}", controllers.CancelFriendRequest(friendsService, logg))
			r.Delete("/{userId}", controllers.RemoveFriend(friendsService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}

func shareRoutes(r chi.Router, svc controllers.ShareService, kind sharing.Kind, idParam string, logg *logger.Logger) {
	r.Get("/shares", controllers.ListSharers(svc, kind, idParam, logg))
	r.Post("/shares", controllers.ShareResource(svc, kind, idParam, logg))
	r.Delete("/shares/{username}", controllers.UnshareResource(svc, kind, idParam, logg))
}
