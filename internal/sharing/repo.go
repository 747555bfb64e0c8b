package sharing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
)

// Kind names a shareable resource.
type Kind string

const (
	KindMeal         Kind = "meal"
	KindMealPlan     Kind = "meal plan"
	KindShoppingList Kind = "shopping list"
)

func (k Kind) resourceTable() string {
	switch k {
	case KindMeal:
		return "meals"
	case KindMealPlan:
		return "meal_plans"
	default:
		return "shopping_lists"
	}
}

func (k Kind) edgeTable() string {
	switch k {
	case KindMeal:
		return "meal_shares"
	case KindMealPlan:
		return "meal_plan_shares"
	default:
		return "shopping_list_shares"
	}
}

func (k Kind) edgeColumn() string {
	switch k {
	case KindMeal:
		return "meal_id"
	case KindMealPlan:
		return "meal_plan_id"
	default:
		return "shopping_list_id"
	}
}

func (k Kind) emptyEdge() any {
	return k.edge(uuid.Nil, uuid.Nil)
}

func (k Kind) edge(resourceID, userID uuid.UUID) any {
	switch k {
	case KindMeal:
		return &models.MealShare{MealID: resourceID, UserID: userID}
	case KindMealPlan:
		return &models.MealPlanShare{MealPlanID: resourceID, UserID: userID}
	default:
		return &models.ShoppingListShare{ShoppingListID: resourceID, UserID: userID}
	}
}

// resource is the slice of an owned row the directory needs.
type resource struct {
	ID      uuid.UUID `gorm:"column:id"`
	OwnerID uuid.UUID `gorm:"column:owner_id"`
	Name    string    `gorm:"column:name"`
}

// Repository persists sharing edges for all three resource kinds.
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

func (r *Repository) Resource(ctx context.Context, kind Kind, id uuid.UUID) (*resource, error) {
	var row resource
	err := r.db.WithContext(ctx).
		Table(kind.resourceTable()).
		Select("id, owner_id, name").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CountEdges returns how many edges link the resource to userID.
func (r *Repository) CountEdges(ctx context.Context, kind Kind, resourceID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table(kind.edgeTable()).
		Where(kind.edgeColumn()+" = ? AND user_id = ?", resourceID, userID).
		Count(&count).Error
	return count, err
}

func (r *Repository) CreateEdge(ctx context.Context, kind Kind, resourceID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(kind.edge(resourceID, userID)).Error
}

func (r *Repository) DeleteEdge(ctx context.Context, kind Kind, resourceID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where(kind.edgeColumn()+" = ? AND user_id = ?", resourceID, userID).
		Delete(kind.emptyEdge()).Error
}

// DeleteEdges removes every edge of the resource.
func (r *Repository) DeleteEdges(ctx context.Context, kind Kind, resourceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where(kind.edgeColumn()+" = ?", resourceID).
		Delete(kind.emptyEdge()).Error
}

// Users returns the ids the resource is shared with, oldest edge first.
func (r *Repository) Users(ctx context.Context, kind Kind, resourceID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table(kind.edgeTable()).
		Where(kind.edgeColumn()+" = ?", resourceID).
		Order("created_at ASC, id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// SharedWith returns the ids of resources of kind shared with userID.
func (r *Repository) SharedWith(ctx context.Context, kind Kind, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table(kind.edgeTable()).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Pluck(kind.edgeColumn(), &ids).Error
	return ids, err
}
