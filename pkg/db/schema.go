package db

import (
	"fmt"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Models lists every table the service owns, parents first.
func Models() []any {
	return []any{
		&models.User{},
		&models.Meal{},
		&models.Recipe{},
		&models.IngredientSection{},
		&models.Ingredient{},
		&models.StepSection{},
		&models.Step{},
		&models.ShoppingList{},
		&models.MealPlan{},
		&models.MealPlanMeal{},
		&models.ShoppingListItem{},
		&models.MealShare{},
		&models.MealPlanShare{},
		&models.ShoppingListShare{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.Notification{},
	}
}

// AutoMigrate builds the schema from the models. Postgres deployments use the
// goose migrations instead; this path serves sqlite.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
