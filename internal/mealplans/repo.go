package mealplans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/pagination"
)

// Repository persists meal plans and their meal instances.
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

func (r *Repository) CreatePlan(ctx context.Context, plan *models.MealPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *Repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.MealPlan, error) {
	var plan models.MealPlan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *Repository) RenamePlan(ctx context.Context, id uuid.UUID, name string) error {
	return r.db.WithContext(ctx).Model(&models.MealPlan{}).Where("id = ?", id).Update("name", name).Error
}

func (r *Repository) DeletePlan(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.MealPlan{}, "id = ?", id).Error
}

type listPlansParams struct {
	ViewerID uuid.UUID
	Limit    int
	Cursor   *pagination.Cursor
}

// ListPlans returns plans owned by or shared with the viewer, newest first.
func (r *Repository) ListPlans(ctx context.Context, params listPlansParams) ([]models.MealPlan, error) {
	shared := r.db.Model(&models.MealPlanShare{}).Select("meal_plan_id").Where("user_id = ?", params.ViewerID)
	query := r.db.WithContext(ctx).
		Model(&models.MealPlan{}).
		Where("owner_id = ? OR id IN (?)", params.ViewerID, shared)

	var plans []models.MealPlan
	err := query.Scopes(pagination.Keyset(params.Cursor)).Limit(params.Limit).Find(&plans).Error
	return plans, err
}

func (r *Repository) FindMeal(ctx context.Context, id uuid.UUID) (*models.Meal, error) {
	var meal models.Meal
	if err := r.db.WithContext(ctx).First(&meal, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &meal, nil
}

func (r *Repository) FindMember(ctx context.Context, planID, mealID uuid.UUID) (*models.MealPlanMeal, error) {
	var member models.MealPlanMeal
	err := r.db.WithContext(ctx).First(&member, "meal_plan_id = ? AND meal_id = ?", planID, mealID).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *Repository) CreateMember(ctx context.Context, member *models.MealPlanMeal) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *Repository) UpdateMemberMultiplier(ctx context.Context, id uuid.UUID, multiplier int) error {
	return r.db.WithContext(ctx).Model(&models.MealPlanMeal{}).Where("id = ?", id).Update("multiplier", multiplier).Error
}

func (r *Repository) DeleteMember(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.MealPlanMeal{}, "id = ?", id).Error
}

func (r *Repository) DeleteMembers(ctx context.Context, planID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.MealPlanMeal{}, "meal_plan_id = ?", planID).Error
}

// MembershipsForMeal returns every plan instance of the meal.
func (r *Repository) MembershipsForMeal(ctx context.Context, mealID uuid.UUID) ([]models.MealPlanMeal, error) {
	var rows []models.MealPlanMeal
	err := r.db.WithContext(ctx).Where("meal_id = ?", mealID).Order("created_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

// Members returns the plan's meals in the order they were added.
func (r *Repository) Members(ctx context.Context, planID uuid.UUID) ([]Member, error) {
	var rows []Member
	err := r.db.WithContext(ctx).
		Table("meal_plan_meals AS mpm").
		Select("mpm.meal_id, meals.name, mpm.multiplier, mpm.created_at").
		Joins("JOIN meals ON meals.id = mpm.meal_id").
		Where("mpm.meal_plan_id = ?", planID).
		Order("mpm.created_at ASC, mpm.id ASC").
		Scan(&rows).Error
	return rows, err
}
