package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MealPlan owns one primary shopping list and optionally a sub-list.
type MealPlan struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID        uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index:meal_plans_owner_id_idx"`
	Name           string     `gorm:"column:name;type:text;not null"`
	ShoppingListID uuid.UUID  `gorm:"column:shopping_list_id;type:uuid;not null"`
	SubListID      *uuid.UUID `gorm:"column:sub_list_id;type:uuid"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *MealPlan) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// ListIDs returns the primary list followed by the sub-list when present.
func (p MealPlan) ListIDs() []uuid.UUID {
	ids := []uuid.UUID{p.ShoppingListID}
	if p.SubListID != nil {
		ids = append(ids, *p.SubListID)
	}
	return ids
}

// MealPlanMeal is a meal instance inside a plan.
type MealPlanMeal struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MealPlanID uuid.UUID `gorm:"column:meal_plan_id;type:uuid;not null;uniqueIndex:meal_plan_meals_plan_meal_key"`
	MealID     uuid.UUID `gorm:"column:meal_id;type:uuid;not null;uniqueIndex:meal_plan_meals_plan_meal_key;index:meal_plan_meals_meal_id_idx"`
	Multiplier int       `gorm:"column:multiplier;not null;default:1"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *MealPlanMeal) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	if m.Multiplier == 0 {
		m.Multiplier = 1
	}
	return nil
}
