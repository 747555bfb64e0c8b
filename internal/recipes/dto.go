package recipes

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
)

type MealDTO struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Recipe      *RecipeDTO `json:"recipe,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type RecipeDTO struct {
	ID                 uuid.UUID       `json:"id"`
	MealID             uuid.UUID       `json:"meal_id"`
	Name               string          `json:"name"`
	IngredientSections []SectionDTO    `json:"ingredient_sections"`
	StepSections       []SectionDTO    `json:"step_sections"`
	Ingredients        []IngredientDTO `json:"ingredients"`
	Steps              []StepDTO       `json:"steps"`
}

type SectionDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}

type IngredientDTO struct {
	ID        uuid.UUID  `json:"id"`
	RecipeID  uuid.UUID  `json:"recipe_id"`
	SectionID *uuid.UUID `json:"section_id,omitempty"`
	Name      string     `json:"name"`
	Amount    string     `json:"amount"`
	Unit      string     `json:"unit"`
	Category  string     `json:"category"`
	Position  int        `json:"position"`
}

type StepDTO struct {
	ID        uuid.UUID  `json:"id"`
	SectionID *uuid.UUID `json:"section_id,omitempty"`
	Body      string     `json:"body"`
	Position  int        `json:"position"`
}

func MealFromModel(meal models.Meal) MealDTO {
	return MealDTO{
		ID:          meal.ID,
		OwnerID:     meal.OwnerID,
		Name:        meal.Name,
		Description: meal.Description,
		CreatedAt:   meal.CreatedAt,
		UpdatedAt:   meal.UpdatedAt,
	}
}

func RecipeFromModel(recipe models.Recipe, tree *Tree) RecipeDTO {
	dto := RecipeDTO{
		ID:                 recipe.ID,
		MealID:             recipe.MealID,
		Name:               recipe.Name,
		IngredientSections: []SectionDTO{},
		StepSections:       []SectionDTO{},
		Ingredients:        []IngredientDTO{},
		Steps:              []StepDTO{},
	}
	if tree == nil {
		return dto
	}
	for _, s := range tree.IngredientSections {
		dto.IngredientSections = append(dto.IngredientSections, SectionDTO{ID: s.ID, Name: s.Name, Position: s.Position})
	}
	for _, s := range tree.StepSections {
		dto.StepSections = append(dto.StepSections, SectionDTO{ID: s.ID, Name: s.Name, Position: s.Position})
	}
	for _, ing := range tree.Ingredients {
		dto.Ingredients = append(dto.Ingredients, IngredientFromModel(ing))
	}
	for _, step := range tree.Steps {
		dto.Steps = append(dto.Steps, StepFromModel(step))
	}
	return dto
}

func IngredientFromModel(ing models.Ingredient) IngredientDTO {
	return IngredientDTO{
		ID:        ing.ID,
		RecipeID:  ing.RecipeID,
		SectionID: ing.SectionID,
		Name:      ing.Name,
		Amount:    ing.Amount,
		Unit:      ing.Unit,
		Category:  ing.Category,
		Position:  ing.Position,
	}
}

func StepFromModel(step models.Step) StepDTO {
	return StepDTO{ID: step.ID, SectionID: step.SectionID, Body: step.Body, Position: step.Position}
}
