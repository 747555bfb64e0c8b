package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recipe belongs to exactly one meal; recipes_meal_id_key enforces the 1:1.
type Recipe struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MealID    uuid.UUID `gorm:"column:meal_id;type:uuid;not null;uniqueIndex:recipes_meal_id_key"`
	Name      string    `gorm:"column:name;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Recipe) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// IngredientSection groups ingredients under a heading.
type IngredientSection struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RecipeID uuid.UUID `gorm:"column:recipe_id;type:uuid;not null;index:ingredient_sections_recipe_id_idx"`
	Name     string    `gorm:"column:name;type:text;not null"`
	Position int       `gorm:"column:position;not null;default:0"`
}

func (s *IngredientSection) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type StepSection struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RecipeID uuid.UUID `gorm:"column:recipe_id;type:uuid;not null;index:step_sections_recipe_id_idx"`
	Name     string    `gorm:"column:name;type:text;not null"`
	Position int       `gorm:"column:position;not null;default:0"`
}

func (s *StepSection) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type Step struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	RecipeID  uuid.UUID  `gorm:"column:recipe_id;type:uuid;not null;index:steps_recipe_id_idx"`
	SectionID *uuid.UUID `gorm:"column:section_id;type:uuid"`
	Body      string     `gorm:"column:body;type:text;not null"`
	Position  int        `gorm:"column:position;not null;default:0"`
}

func (s *Step) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
