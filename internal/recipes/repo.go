package recipes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/pagination"
)

// Repository persists meals and their recipe tree.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateMeal(ctx context.Context, meal *models.Meal) error {
	return r.db.WithContext(ctx).Create(meal).Error
}

func (r *Repository) FindMeal(ctx context.Context, id uuid.UUID) (*models.Meal, error) {
	var meal models.Meal
	if err := r.db.WithContext(ctx).First(&meal, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &meal, nil
}

func (r *Repository) UpdateMeal(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Meal{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repository) DeleteMeal(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Meal{}, "id = ?", id).Error
}

type listMealsParams struct {
	ViewerID uuid.UUID
	Limit    int
	Cursor   *pagination.Cursor
}

// ListMeals returns meals owned by or shared with the viewer, newest first.
func (r *Repository) ListMeals(ctx context.Context, params listMealsParams) ([]models.Meal, error) {
	shared := r.db.Model(&models.MealShare{}).Select("meal_id").Where("user_id = ?", params.ViewerID)
	query := r.db.WithContext(ctx).
		Model(&models.Meal{}).
		Where("owner_id = ? OR id IN (?)", params.ViewerID, shared)

	var meals []models.Meal
	err := query.Scopes(pagination.Keyset(params.Cursor)).Limit(params.Limit).Find(&meals).Error
	return meals, err
}

func (r *Repository) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	return r.db.WithContext(ctx).Create(recipe).Error
}

func (r *Repository) FindRecipeByMeal(ctx context.Context, mealID uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := r.db.WithContext(ctx).First(&recipe, "meal_id = ?", mealID).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

// DeleteRecipeTree removes a recipe with its sections, steps and ingredients.
func (r *Repository) DeleteRecipeTree(ctx context.Context, recipeID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	for _, model := range []any{&models.Ingredient{}, &models.Step{}, &models.IngredientSection{}, &models.StepSection{}} {
		if err := db.Where("recipe_id = ?", recipeID).Delete(model).Error; err != nil {
			return err
		}
	}
	return db.Delete(&models.Recipe{}, "id = ?", recipeID).Error
}

func (r *Repository) CreateIngredientSection(ctx context.Context, section *models.IngredientSection) error {
	return r.db.WithContext(ctx).Create(section).Error
}

func (r *Repository) CreateStepSection(ctx context.Context, section *models.StepSection) error {
	return r.db.WithContext(ctx).Create(section).Error
}

// SectionExists reports whether sectionID is an ingredient (or step) section of recipeID.
func (r *Repository) SectionExists(ctx context.Context, recipeID, sectionID uuid.UUID, steps bool) (bool, error) {
	var model any = &models.IngredientSection{}
	if steps {
		model = &models.StepSection{}
	}
	var count int64
	err := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND recipe_id = ?", sectionID, recipeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateStep(ctx context.Context, step *models.Step) error {
	return r.db.WithContext(ctx).Create(step).Error
}

func (r *Repository) FindStep(ctx context.Context, id uuid.UUID) (*models.Step, error) {
	var step models.Step
	if err := r.db.WithContext(ctx).First(&step, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *Repository) DeleteStep(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Step{}, "id = ?", id).Error
}

func (r *Repository) CreateIngredient(ctx context.Context, ingredient *models.Ingredient) error {
	return r.db.WithContext(ctx).Create(ingredient).Error
}

func (r *Repository) FindIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := r.db.WithContext(ctx).First(&ingredient, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *Repository) UpdateIngredient(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Ingredient{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repository) DeleteIngredient(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Ingredient{}, "id = ?", id).Error
}

// NextIngredientPosition returns one past the highest ingredient position.
func (r *Repository) NextIngredientPosition(ctx context.Context, recipeID uuid.UUID) (int, error) {
	var result struct {
		Max *int
	}
	err := r.db.WithContext(ctx).Model(&models.Ingredient{}).
		Select("MAX(position) AS max").
		Where("recipe_id = ?", recipeID).
		Scan(&result).Error
	if err != nil || result.Max == nil {
		return 0, err
	}
	return *result.Max + 1, nil
}

// Tree loads everything hanging off a recipe in display order.
func (r *Repository) Tree(ctx context.Context, recipeID uuid.UUID) (*Tree, error) {
	db := r.db.WithContext(ctx)
	tree := &Tree{}
	if err := db.Where("recipe_id = ?", recipeID).Order("position ASC, id ASC").Find(&tree.IngredientSections).Error; err != nil {
		return nil, err
	}
	if err := db.Where("recipe_id = ?", recipeID).Order("position ASC, id ASC").Find(&tree.StepSections).Error; err != nil {
		return nil, err
	}
	if err := db.Where("recipe_id = ?", recipeID).Order("position ASC, created_at ASC, id ASC").Find(&tree.Ingredients).Error; err != nil {
		return nil, err
	}
	if err := db.Where("recipe_id = ?", recipeID).Order("position ASC, id ASC").Find(&tree.Steps).Error; err != nil {
		return nil, err
	}
	return tree, nil
}

// Tree is a recipe's children.
type Tree struct {
	IngredientSections []models.IngredientSection
	StepSections       []models.StepSection
	Ingredients        []models.Ingredient
	Steps              []models.Step
}

func (r *Repository) FindRecipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := r.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *Repository) Ingredients(ctx context.Context, recipeID uuid.UUID) ([]models.Ingredient, error) {
	var rows []models.Ingredient
	err := r.db.WithContext(ctx).Where("recipe_id = ?", recipeID).Order("position ASC, id ASC").Find(&rows).Error
	return rows, err
}
