package shoppinglists

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
)

// Repository encapsulates shopping-list and line-item persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a shopping-list repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateList(ctx context.Context, list *models.ShoppingList) error {
	return r.db.WithContext(ctx).Create(list).Error
}

func (r *Repository) FindList(ctx context.Context, id uuid.UUID) (*models.ShoppingList, error) {
	var list models.ShoppingList
	if err := r.db.WithContext(ctx).First(&list, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

// ListsByIDs returns the lists in the order of ids, skipping missing ones.
func (r *Repository) ListsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ShoppingList, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ShoppingList
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.ShoppingList, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]models.ShoppingList, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

func (r *Repository) RenameList(ctx context.Context, id uuid.UUID, name string) error {
	return r.db.WithContext(ctx).
		Model(&models.ShoppingList{}).
		Where("id = ?", id).
		Update("name", name).Error
}

func (r *Repository) DeleteList(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ShoppingList{}, "id = ?", id).Error
}

func (r *Repository) CreateItem(ctx context.Context, item *models.ShoppingListItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) FindItem(ctx context.Context, listID, itemID uuid.UUID) (*models.ShoppingListItem, error) {
	var item models.ShoppingListItem
	if err := r.db.WithContext(ctx).
		First(&item, "id = ? AND shopping_list_id = ?", itemID, listID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Items returns a list's items in insertion order.
func (r *Repository) Items(ctx context.Context, listID uuid.UUID) ([]models.ShoppingListItem, error) {
	var items []models.ShoppingListItem
	err := r.db.WithContext(ctx).
		Where("shopping_list_id = ?", listID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// ItemsByIngredient returns every derived item pointing at the ingredient.
func (r *Repository) ItemsByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]models.ShoppingListItem, error) {
	var items []models.ShoppingListItem
	err := r.db.WithContext(ctx).
		Where("ingredient_id = ?", ingredientID).
		Order("shopping_list_id ASC, created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// ItemsByMealName returns the items of the given lists tagged with mealName.
func (r *Repository) ItemsByMealName(ctx context.Context, listIDs []uuid.UUID, mealName string) ([]models.ShoppingListItem, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	var items []models.ShoppingListItem
	err := r.db.WithContext(ctx).
		Where("shopping_list_id IN ? AND meal_name = ?", listIDs, mealName).
		Order("shopping_list_id ASC, created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// ItemsDerivedFromMeal narrows ItemsByMealName to items whose ingredient
// belongs to mealID's recipe, so a second meal with the same name in the
// plan keeps its own items.
func (r *Repository) ItemsDerivedFromMeal(ctx context.Context, listIDs []uuid.UUID, mealID uuid.UUID, mealName string) ([]models.ShoppingListItem, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	recipeIngredients := r.db.
		Table("ingredients").
		Select("ingredients.id").
		Joins("JOIN recipes ON recipes.id = ingredients.recipe_id").
		Where("recipes.meal_id = ?", mealID)

	var items []models.ShoppingListItem
	err := r.db.WithContext(ctx).
		Where("shopping_list_id IN ? AND meal_name = ?", listIDs, mealName).
		Where("ingredient_id IN (?)", recipeIngredients).
		Order("shopping_list_id ASC, created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// PlanHasOtherMealNamed reports whether planID holds a meal other than
// mealID whose name is name.
func (r *Repository) PlanHasOtherMealNamed(ctx context.Context, planID, mealID uuid.UUID, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("meal_plan_meals AS mpm").
		Joins("JOIN meals ON meals.id = mpm.meal_id").
		Where("mpm.meal_plan_id = ? AND mpm.meal_id <> ? AND meals.name = ?", planID, mealID, name).
		Count(&count).Error
	return count > 0, err
}

// MinMultiplier returns the smallest multiplier among the list's items and
// false when the list has none.
func (r *Repository) MinMultiplier(ctx context.Context, listID uuid.UUID) (int, bool, error) {
	var result struct {
		Min   *int
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ShoppingListItem{}).
		Select("MIN(multiplier) AS min, COUNT(*) AS count").
		Where("shopping_list_id = ?", listID).
		Scan(&result).Error
	if err != nil {
		return 0, false, err
	}
	if result.Count == 0 || result.Min == nil {
		return 0, false, nil
	}
	return *result.Min, true, nil
}

func (r *Repository) UpdateItem(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ShoppingListItem{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ShoppingListItem{}, "id = ?", id).Error
}

func (r *Repository) DeleteItemsByList(ctx context.Context, listID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ShoppingListItem{}, "shopping_list_id = ?", listID).Error
}

// PlansForMeal returns the plans referencing mealID with their instance multiplier.
func (r *Repository) PlansForMeal(ctx context.Context, mealID uuid.UUID) ([]PlanInstance, error) {
	var rows []PlanInstance
	err := r.db.WithContext(ctx).
		Table("meal_plan_meals AS mpm").
		Select("mp.id AS plan_id, mp.shopping_list_id, mp.sub_list_id, mpm.multiplier").
		Joins("JOIN meal_plans mp ON mp.id = mpm.meal_plan_id").
		Where("mpm.meal_id = ?", mealID).
		Order("mpm.created_at ASC, mp.id ASC").
		Scan(&rows).Error
	return rows, err
}

// MealForRecipe resolves the meal owning recipeID.
func (r *Repository) MealForRecipe(ctx context.Context, recipeID uuid.UUID) (*models.Meal, error) {
	var meal models.Meal
	err := r.db.WithContext(ctx).
		Table("meals").
		Select("meals.*").
		Joins("JOIN recipes ON recipes.meal_id = meals.id").
		Where("recipes.id = ?", recipeID).
		Take(&meal).Error
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

// IngredientsForMeal returns the ingredients of the meal's recipe in display order.
func (r *Repository) IngredientsForMeal(ctx context.Context, mealID uuid.UUID) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := r.db.WithContext(ctx).
		Table("ingredients").
		Select("ingredients.*").
		Joins("JOIN recipes ON recipes.id = ingredients.recipe_id").
		Where("recipes.meal_id = ?", mealID).
		Order("ingredients.position ASC, ingredients.created_at ASC, ingredients.id ASC").
		Find(&ingredients).Error
	return ingredients, err
}

// PlanInstance is a (plan, meal instance) pair used when fanning out ingredient changes.
type PlanInstance struct {
	PlanID         uuid.UUID  `gorm:"column:plan_id"`
	ShoppingListID uuid.UUID  `gorm:"column:shopping_list_id"`
	SubListID      *uuid.UUID `gorm:"column:sub_list_id"`
	Multiplier     int        `gorm:"column:multiplier"`
}

func (p PlanInstance) ListIDs() []uuid.UUID {
	ids := []uuid.UUID{p.ShoppingListID}
	if p.SubListID != nil {
		ids = append(ids, *p.SubListID)
	}
	return ids
}
