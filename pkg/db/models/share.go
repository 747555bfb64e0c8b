package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MealShare struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MealID    uuid.UUID `gorm:"column:meal_id;type:uuid;not null;uniqueIndex:meal_shares_meal_user_key"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:meal_shares_meal_user_key;index:meal_shares_user_id_idx"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (s *MealShare) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type MealPlanShare struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MealPlanID uuid.UUID `gorm:"column:meal_plan_id;type:uuid;not null;uniqueIndex:meal_plan_shares_plan_user_key"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:meal_plan_shares_plan_user_key;index:meal_plan_shares_user_id_idx"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (s *MealPlanShare) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type ShoppingListShare struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShoppingListID uuid.UUID `gorm:"column:shopping_list_id;type:uuid;not null;uniqueIndex:shopping_list_shares_list_user_key"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:shopping_list_shares_list_user_key;index:shopping_list_shares_user_id_idx"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (s *ShoppingListShare) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
