// Package sharing owns the sharing edges between users and meals, meal plans
// and shopping lists, and answers who may observe a resource.
package sharing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/notifications"
	"github.com/angelmondragon/mealshare-backend/internal/shoppinglists"
	"github.com/angelmondragon/mealshare-backend/internal/uow"
	"github.com/angelmondragon/mealshare-backend/internal/users"
	"github.com/angelmondragon/mealshare-backend/pkg/db"
	"github.com/angelmondragon/mealshare-backend/pkg/db/models"
	"github.com/angelmondragon/mealshare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
	"github.com/angelmondragon/mealshare-backend/pkg/visibility"
)

type Params struct {
	Runner   *uow.Runner
	Repo     *Repository
	Users    *users.Directory
	Notifier notifications.Notifier
	Logger   *logger.Logger
}

// Directory runs share/unshare commands and serves audience queries to the
// other services.
type Directory struct {
	runner   *uow.Runner
	repo     *Repository
	users    *users.Directory
	notifier notifications.Notifier
	logg     *logger.Logger
}

func NewDirectory(params Params) (*Directory, error) {
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "unit of work runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sharing repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user directory required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	return &Directory{
		runner:   params.Runner,
		repo:     params.Repo,
		users:    params.Users,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

func (d *Directory) ShareMeal(ctx context.Context, actorID, mealID uuid.UUID, username string) error {
	return d.share(ctx, KindMeal, actorID, mealID, username)
}

// ShareMealPlan grants the plan and, transitively, its shopping lists.
func (d *Directory) ShareMealPlan(ctx context.Context, actorID, planID uuid.UUID, username string) error {
	return d.share(ctx, KindMealPlan, actorID, planID, username)
}

func (d *Directory) ShareShoppingList(ctx context.Context, actorID, listID uuid.UUID, username string) error {
	return d.share(ctx, KindShoppingList, actorID, listID, username)
}

func (d *Directory) UnshareMeal(ctx context.Context, actorID, mealID uuid.UUID, username string) error {
	return d.unshare(ctx, KindMeal, actorID, mealID, username)
}

func (d *Directory) UnshareMealPlan(ctx context.Context, actorID, planID uuid.UUID, username string) error {
	return d.unshare(ctx, KindMealPlan, actorID, planID, username)
}

func (d *Directory) UnshareShoppingList(ctx context.Context, actorID, listID uuid.UUID, username string) error {
	return d.unshare(ctx, KindShoppingList, actorID, listID, username)
}

// Sharers lists who the resource is shared with. Visible to owner and sharers.
func (d *Directory) Sharers(ctx context.Context, kind Kind, viewerID, resourceID uuid.UUID) ([]users.PublicUserDTO, error) {
	var out []users.PublicUserDTO
	err := d.runner.Do(ctx, func(unit *uow.Unit) error {
		res, err := d.loadResource(ctx, unit, kind, resourceID)
		if err != nil {
			return err
		}
		ok, err := d.canView(ctx, unit, kind, res, viewerID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.NotFoundf("%s not found", kind)
		}
		ids, err := d.repo.WithTx(unit.Tx()).Users(ctx, kind, resourceID)
		if err != nil {
			return pkgerrors.Internal(err, "load sharers")
		}
		out, err = d.users.Public(ctx, unit, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Directory) share(ctx context.Context, kind Kind, actorID, resourceID uuid.UUID, username string) error {
	var targetID uuid.UUID
	err := d.runner.Do(ctx, func(unit *uow.Unit) error {
		res, err := d.ensureOwner(ctx, unit, kind, resourceID, actorID)
		if err != nil {
			return err
		}
		target, err := d.users.ByUsername(ctx, unit, username)
		if err != nil {
			return err
		}
		if target.ID == actorID {
			return pkgerrors.Validationf("cannot share a %s with yourself", kind)
		}
		targetID = target.ID

		created, err := d.grant(ctx, unit, kind, resourceID, target.ID)
		if err != nil {
			return err
		}
		if !created {
			// already shared: no second edge, no second notification
			return nil
		}

		listIDs, err := d.listsFor(ctx, unit, kind, resourceID)
		if err != nil {
			return err
		}
		var granted []uuid.UUID
		for _, listID := range listIDs {
			if kind != KindShoppingList {
				ok, err := d.grant(ctx, unit, KindShoppingList, listID, target.ID)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			granted = append(granted, listID)
		}
		if err := d.emitLists(ctx, unit, target.ID, granted, enums.ChangeTypeAdd); err != nil {
			return err
		}

		actor, err := d.users.ByID(ctx, unit, actorID)
		if err != nil {
			return err
		}
		from := actorID
		resID := resourceID
		_, err = d.notifier.Notify(ctx, unit, notifications.NotifyInput{
			UserID:     target.ID,
			FromUserID: &from,
			Category:   categoryFor(kind),
			Message:    fmt.Sprintf("%s shared the %s %q with you", actor.Username, kind, res.Name),
			ResourceID: &resID,
		})
		return err
	})
	if err != nil {
		return err
	}
	d.logCommitted(ctx, "resource shared", kind, actorID, resourceID, targetID)
	return nil
}

func (d *Directory) unshare(ctx context.Context, kind Kind, actorID, resourceID uuid.UUID, username string) error {
	var targetID uuid.UUID
	err := d.runner.Do(ctx, func(unit *uow.Unit) error {
		if _, err := d.ensureOwner(ctx, unit, kind, resourceID, actorID); err != nil {
			return err
		}
		target, err := d.users.ByUsername(ctx, unit, username)
		if err != nil {
			return err
		}
		targetID = target.ID

		repo := d.repo.WithTx(unit.Tx())
		count, err := repo.CountEdges(ctx, kind, resourceID, target.ID)
		if err != nil {
			return pkgerrors.Internal(err, "count share edges")
		}
		if count == 0 {
			return pkgerrors.NotFoundf("%s is not shared with %s", kind, target.Username)
		}

		listIDs, err := d.listsFor(ctx, unit, kind, resourceID)
		if err != nil {
			return err
		}
		// announce before the edges go so the departing user still receives it
		if err := d.emitLists(ctx, unit, target.ID, listIDs, enums.ChangeTypeDelete); err != nil {
			return err
		}

		if err := repo.DeleteEdge(ctx, kind, resourceID, target.ID); err != nil {
			return pkgerrors.Internal(err, "delete share edge")
		}
		if kind == KindMealPlan {
			for _, listID := range listIDs {
				if err := repo.DeleteEdge(ctx, KindShoppingList, listID, target.ID); err != nil {
					return pkgerrors.Internal(err, "delete list share edge")
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.logCommitted(ctx, "resource unshared", kind, actorID, resourceID, targetID)
	return nil
}

// grant inserts an edge unless it already exists.
func (d *Directory) grant(ctx context.Context, unit *uow.Unit, kind Kind, resourceID, userID uuid.UUID) (bool, error) {
	repo := d.repo.WithTx(unit.Tx())
	count, err := repo.CountEdges(ctx, kind, resourceID, userID)
	if err != nil {
		return false, pkgerrors.Internal(err, "count share edges")
	}
	if count > 0 {
		return false, nil
	}
	if err := repo.CreateEdge(ctx, kind, resourceID, userID); err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "share edge created concurrently")
		}
		return false, pkgerrors.Internal(err, "create share edge")
	}
	return true, nil
}

// listsFor returns the shopping lists a share of the resource reaches.
func (d *Directory) listsFor(ctx context.Context, unit *uow.Unit, kind Kind, resourceID uuid.UUID) ([]uuid.UUID, error) {
	switch kind {
	case KindShoppingList:
		return []uuid.UUID{resourceID}, nil
	case KindMealPlan:
		var plan models.MealPlan
		if err := unit.Tx().WithContext(ctx).First(&plan, "id = ?", resourceID).Error; err != nil {
			return nil, pkgerrors.Internal(err, "load meal plan lists")
		}
		return plan.ListIDs(), nil
	}
	return nil, nil
}

func (d *Directory) emitLists(ctx context.Context, unit *uow.Unit, userID uuid.UUID, listIDs []uuid.UUID, changeType enums.ChangeType) error {
	if len(listIDs) == 0 {
		return nil
	}
	lists, err := shoppinglists.NewRepository(unit.Tx()).ListsByIDs(ctx, listIDs)
	if err != nil {
		return pkgerrors.Internal(err, "load shared lists")
	}
	for _, list := range lists {
		unit.Emit([]uuid.UUID{userID}, enums.EventShoppingList, changeType, shoppinglists.ListFromModel(list, nil))
	}
	return nil
}

func (d *Directory) loadResource(ctx context.Context, unit *uow.Unit, kind Kind, id uuid.UUID) (*resource, error) {
	res, err := d.repo.WithTx(unit.Tx()).Resource(ctx, kind, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.NotFoundf("%s not found", kind)
		}
		return nil, pkgerrors.Internal(err, fmt.Sprintf("load %s", kind))
	}
	return res, nil
}

func (d *Directory) ensureOwner(ctx context.Context, unit *uow.Unit, kind Kind, resourceID, actorID uuid.UUID) (*resource, error) {
	res, err := d.loadResource(ctx, unit, kind, resourceID)
	if err != nil {
		return nil, err
	}
	shared := false
	if res.OwnerID != actorID {
		shared, err = d.isShared(ctx, unit, kind, resourceID, actorID)
		if err != nil {
			return nil, err
		}
	}
	if err := visibility.EnsureOwner(visibility.Input{
		Resource: string(kind),
		OwnerID:  res.OwnerID,
		ViewerID: actorID,
		Shared:   shared,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Directory) isShared(ctx context.Context, unit *uow.Unit, kind Kind, resourceID, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	count, err := d.repo.WithTx(unit.Tx()).CountEdges(ctx, kind, resourceID, userID)
	if err != nil {
		return false, pkgerrors.Internal(err, "count share edges")
	}
	return count > 0, nil
}

func (d *Directory) canView(ctx context.Context, unit *uow.Unit, kind Kind, res *resource, viewerID uuid.UUID) (bool, error) {
	if res.OwnerID == viewerID {
		return viewerID != uuid.Nil, nil
	}
	shared, err := d.isShared(ctx, unit, kind, res.ID, viewerID)
	if err != nil {
		return false, err
	}
	return visibility.CanView(visibility.Input{OwnerID: res.OwnerID, ViewerID: viewerID, Shared: shared}), nil
}

func (d *Directory) logCommitted(ctx context.Context, msg string, kind Kind, actorID, resourceID, targetID uuid.UUID) {
	if d.logg == nil {
		return
	}
	logCtx := d.logg.WithUserID(ctx, actorID.String())
	logCtx = d.logg.WithFields(logCtx, map[string]any{
		"resource_kind": string(kind),
		"resource_id":   resourceID.String(),
		"target_id":     targetID.String(),
	})
	d.logg.Info(logCtx, msg)
}

func categoryFor(kind Kind) enums.NotificationCategory {
	switch kind {
	case KindMeal:
		return enums.NotificationCategoryMeal
	case KindMealPlan:
		return enums.NotificationCategoryMealPlan
	default:
		return enums.NotificationCategoryShoppingList
	}
}
