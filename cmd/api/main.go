package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/mealshare-backend/api/routes"
	"github.com/angelmondragon/mealshare-backend/internal/auth"
	"github.com/angelmondragon/mealshare-backend/internal/friends"
	"github.com/angelmondragon/mealshare-backend/internal/mealplans"
	"github.com/angelmondragon/mealshare-backend/internal/notifications"
	"github.com/angelmondragon/mealshare-backend/internal/recipes"
	"github.com/angelmondragon/mealshare-backend/internal/sharing"
	"github.com/angelmondragon/mealshare-backend/internal/shoppinglists"
	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/internal/users"
	"github.com/angelmondragon/mealshare-backend/pkg/auth/session"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/metrics"
	"github.com/angelmondragon/mealshare-backend/pkg/migrate"
	"github.com/angelmondragon/mealshare-backend/pkg/realtime"
	"github.com/angelmondragon/mealshare-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "migrations", migrate.MaybeRun(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	realtimeMetrics := metrics.NewRealtimeMetrics(registry)
	materializerMetrics := metrics.NewMaterializerMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	var bus realtime.Bus
	if cfg.Realtime.UsesRedis() {
		bus, err = realtime.NewRedisBus(redisClient, cfg.Realtime.Channel, logg)
		requireResource(ctx, logg, "realtime bus", err)
	} else {
		bus = realtime.NewLocalBus()
	}
	defer bus.Close()

	hub := realtime.NewHub(logg, realtimeMetrics, cfg.Realtime.ClientBuffer)
	requireResource(ctx, logg, "realtime subscription", bus.Start(ctx, hub.Deliver))

	broadcaster, err := realtime.NewBroadcaster(bus, logg, realtimeMetrics)
	requireResource(ctx, logg, "realtime broadcaster", err)
	runner, err := uow.NewRunner(dbClient, broadcaster, logg)
	requireResource(ctx, logg, "unit of work", err)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	userDir, err := users.NewDirectory(userRepo)
	requireResource(ctx, logg, "user directory", err)
	notificationsRepo := notifications.NewRepository(conn)
	notifier, err := notifications.NewNotifier(notificationsRepo)
	requireResource(ctx, logg, "notifier", err)
	inbox, err := notifications.NewService(notificationsRepo)
	requireResource(ctx, logg, "notifications service", err)

	shareDir, err := sharing.NewDirectory(sharing.Params{
		Runner:   runner,
		Repo:     sharing.NewRepository(conn),
		Users:    userDir,
		Notifier: notifier,
		Logger:   logg,
	})
	requireResource(ctx, logg, "sharing directory", err)

	listRepo := shoppinglists.NewRepository(conn)
	materializer, err := shoppinglists.NewMaterializer(shoppinglists.MaterializerParams{
		Repo:             listRepo,
		Audience:         shareDir,
		Metrics:          materializerMetrics,
		MultiplierPolicy: cfg.Planner.MultiplierPolicy,
		Logger:           logg,
	})
	requireResource(ctx, logg, "materializer", err)

	planRepo := mealplans.NewRepository(conn)
	detacher, err := mealplans.NewDetacher(planRepo, materializer)
	requireResource(ctx, logg, "plan detacher", err)

	recipeService, err := recipes.NewService(recipes.ServiceParams{
		Runner:       runner,
		Repo:         recipes.NewRepository(conn),
		Materializer: materializer,
		Access:       shareDir,
		Plans:        detacher,
		Logger:       logg,
	})
	requireResource(ctx, logg, "recipes service", err)

	mealPlanService, err := mealplans.NewService(mealplans.ServiceParams{
		Runner:       runner,
		Repo:         planRepo,
		Materializer: materializer,
		Access:       shareDir,
		Logger:       logg,
	})
	requireResource(ctx, logg, "meal plans service", err)

	shoppingListService, err := shoppinglists.NewService(shoppinglists.ServiceParams{
		Runner:       runner,
		Repo:         listRepo,
		Materializer: materializer,
		Audience:     shareDir,
		Logger:       logg,
	})
	requireResource(ctx, logg, "shopping lists service", err)

	friendsService, err := friends.NewService(friends.ServiceParams{
		Runner:   runner,
		Repo:     friends.NewRepository(conn),
		Users:    userDir,
		Notifier: notifier,
		Logger:   logg,
	})
	requireResource(ctx, logg, "friends service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireResource(ctx, logg, "auth service", err)
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	requireResource(ctx, logg, "register service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"realtime": cfg.Realtime.Driver,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			httpMetrics,
			hub,
			sessionManager,
			authService,
			registerService,
			recipeService,
			mealPlanService,
			shoppingListService,
			shareDir,
			friendsService,
			inbox,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
