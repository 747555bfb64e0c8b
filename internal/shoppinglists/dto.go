package shoppinglists

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
)

// ItemDTO is the line item shape sent to clients and carried in realtime events.
type ItemDTO struct {
	ID             uuid.UUID  `json:"id"`
	ShoppingListID uuid.UUID  `json:"shopping_list_id"`
	IngredientID   *uuid.UUID `json:"ingredient_id,omitempty"`
	Name           string     `json:"name"`
	Amount         string     `json:"amount"`
	Unit           string     `json:"unit"`
	Category       string     `json:"category"`
	Multiplier     int        `json:"multiplier"`
	TotalAmount    string     `json:"total_amount"`
	Obtained       bool       `json:"obtained"`
	MealName       string     `json:"meal_name"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ListDTO is a shopping list with its items.
type ListDTO struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Name       string     `json:"name"`
	MealPlanID *uuid.UUID `json:"meal_plan_id,omitempty"`
	IsSublist  bool       `json:"is_sublist"`
	Items      []ItemDTO  `json:"items,omitempty"`
}

// BatchDTO is the payload of a bulk "multiple" event for one list.
type BatchDTO struct {
	ShoppingListID uuid.UUID `json:"shopping_list_id"`
	Items          []ItemDTO `json:"items"`
}

func ItemFromModel(item models.ShoppingListItem) ItemDTO {
	return ItemDTO{
		ID:             item.ID,
		ShoppingListID: item.ShoppingListID,
		IngredientID:   item.IngredientID,
		Name:           item.Name,
		Amount:         item.Amount,
		Unit:           item.Unit,
		Category:       item.Category,
		Multiplier:     item.Multiplier,
		TotalAmount:    ScaledAmount(item.Amount, item.Multiplier),
		Obtained:       item.Obtained,
		MealName:       item.MealName,
		CreatedAt:      item.CreatedAt,
	}
}

func ItemsFromModels(items []models.ShoppingListItem) []ItemDTO {
	out := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, ItemFromModel(item))
	}
	return out
}

func ListFromModel(list models.ShoppingList, items []models.ShoppingListItem) ListDTO {
	dto := ListDTO{
		ID:         list.ID,
		OwnerID:    list.OwnerID,
		Name:       list.Name,
		MealPlanID: list.MealPlanID,
		IsSublist:  list.IsSublist,
	}
	if items != nil {
		dto.Items = ItemsFromModels(items)
	}
	return dto
}

// ScaledAmount multiplies a decimal amount by the multiplier. Free-form amounts
// ("a pinch", "1/2") are returned unchanged.
func ScaledAmount(amount string, multiplier int) string {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return ""
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return amount
	}
	if multiplier <= 1 {
		return value.String()
	}
	return value.Mul(decimal.NewFromInt(int64(multiplier))).String()
}
