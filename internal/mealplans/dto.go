package mealplans

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
)

// Member is one meal instance of a plan.
type Member struct {
	MealID     uuid.UUID `gorm:"column:meal_id" json:"meal_id"`
	Name       string    `gorm:"column:name" json:"name"`
	Multiplier int       `gorm:"column:multiplier" json:"multiplier"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"added_at"`
}

type MealPlanDTO struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	Name           string     `json:"name"`
	ShoppingListID uuid.UUID  `json:"shopping_list_id"`
	SubListID      *uuid.UUID `json:"sub_list_id,omitempty"`
	Meals          []Member   `json:"meals"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func FromModel(plan models.MealPlan, members []Member) MealPlanDTO {
	if members == nil {
		members = []Member{}
	}
	return MealPlanDTO{
		ID:             plan.ID,
		OwnerID:        plan.OwnerID,
		Name:           plan.Name,
		ShoppingListID: plan.ShoppingListID,
		SubListID:      plan.SubListID,
		Meals:          members,
		CreatedAt:      plan.CreatedAt,
		UpdatedAt:      plan.UpdatedAt,
	}
}
