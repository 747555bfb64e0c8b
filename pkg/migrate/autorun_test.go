package migrate

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/mealshare-backend/pkg/config"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

func openBareSQLite(t *testing.T) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.FromGorm(conn)
}

func TestMaybeRunSkipsWithoutFlag(t *testing.T) {
	client := openBareSQLite(t)
	cfg := &config.Config{DB: config.DBConfig{Driver: config.DBDriverSQLite}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	require.NoError(t, MaybeRun(context.Background(), cfg, logg, client))
	require.False(t, client.DB().Migrator().HasTable("meals"))
}

func TestMaybeRunBuildsSQLiteSchema(t *testing.T) {
	client := openBareSQLite(t)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{Driver: config.DBDriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	require.NoError(t, MaybeRun(context.Background(), cfg, logg, client))
	for _, table := range []string{"users", "meals", "meal_plan_meals", "shopping_list_items", "notifications"} {
		require.True(t, client.DB().Migrator().HasTable(table), table)
	}
	require.True(t, client.DB().Migrator().HasIndex("shopping_list_items", "shopping_list_items_list_ingredient_meal_key"))
}
