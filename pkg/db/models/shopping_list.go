package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShoppingList is either standalone or derived from a meal plan.
type ShoppingList struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID    uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index:shopping_lists_owner_id_idx"`
	Name       string     `gorm:"column:name;type:text;not null"`
	MealPlanID *uuid.UUID `gorm:"column:meal_plan_id;type:uuid;index:shopping_lists_meal_plan_id_idx"`
	IsSublist  bool       `gorm:"column:is_sublist;not null;default:false"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *ShoppingList) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// ShoppingListItem snapshots an ingredient (or a manual entry) into a list.
// IngredientID is nil for manual items and for items whose source was removed.
type ShoppingListItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ShoppingListID uuid.UUID  `gorm:"column:shopping_list_id;type:uuid;not null;uniqueIndex:shopping_list_items_list_ingredient_meal_key"`
	IngredientID   *uuid.UUID `gorm:"column:ingredient_id;type:uuid;uniqueIndex:shopping_list_items_list_ingredient_meal_key;index:shopping_list_items_ingredient_id_idx"`
	Name           string     `gorm:"column:name;type:text;not null"`
	Amount         string     `gorm:"column:amount;type:text;not null;default:''"`
	Unit           string     `gorm:"column:unit;type:text;not null;default:''"`
	Category       string     `gorm:"column:category;type:text;not null;default:''"`
	Multiplier     int        `gorm:"column:multiplier;not null;default:1"`
	Obtained       bool       `gorm:"column:obtained;not null;default:false"`
	MealName       string     `gorm:"column:meal_name;type:text;not null;default:'';uniqueIndex:shopping_list_items_list_ingredient_meal_key"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *ShoppingListItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	if i.Multiplier == 0 {
		i.Multiplier = 1
	}
	return nil
}
