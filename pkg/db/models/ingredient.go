package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ingredient is the source row line items are derived from.
type Ingredient struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	RecipeID  uuid.UUID  `gorm:"column:recipe_id;type:uuid;not null;index:ingredients_recipe_id_idx"`
	SectionID *uuid.UUID `gorm:"column:section_id;type:uuid"`
	Name      string     `gorm:"column:name;type:text;not null"`
	Amount    string     `gorm:"column:amount;type:text;not null;default:''"`
	Unit      string     `gorm:"column:unit;type:text;not null;default:''"`
	Category  string     `gorm:"column:category;type:text;not null;default:''"`
	Position  int        `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Ingredient) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
