package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/api/responses"
	"github.com/angelmondragon/mealshare-backend/api/validators"
	"github.com/angelmondragon/mealshare-backend/internal/sharing"
	"github.com/angelmondragon/mealshare-backend/internal/users"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

// ShareService is the slice of sharing.Directory the HTTP layer drives.
type ShareService interface {
	ShareMeal(ctx context.Context, actorID, mealID uuid.UUID, username string) error
	ShareMealPlan(ctx context.Context, actorID, planID uuid.UUID, username string) error
	ShareShoppingList(ctx context.Context, actorID, listID uuid.UUID, username string) error
	UnshareMeal(ctx context.Context, actorID, mealID uuid.UUID, username string) error
	UnshareMealPlan(ctx context.Context, actorID, planID uuid.UUID, username string) error
	UnshareShoppingList(ctx context.Context, actorID, listID uuid.UUID, username string) error
	Sharers(ctx context.Context, kind sharing.Kind, viewerID, resourceID uuid.UUID) ([]users.PublicUserDTO, error)
}

type shareRequest struct {
	Username string `json:"username" validate:"required,max=32"`
}

// ShareResource grants username access to the resource named by idParam.
func ShareResource(svc ShareService, kind sharing.Kind, idParam string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sharing service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resourceID, err := validators.ParseUUIDParam(r, idParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body shareRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := share(r.Context(), svc, kind, userID, resourceID, body.Username); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func UnshareResource(svc ShareService, kind sharing.Kind, idParam string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sharing service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resourceID, err := validators.ParseUUIDParam(r, idParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		username, err := validators.PathString(r, "username", maxUsernameLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := unshare(r.Context(), svc, kind, userID, resourceID, username); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func ListSharers(svc ShareService, kind sharing.Kind, idParam string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sharing service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resourceID, err := validators.ParseUUIDParam(r, idParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sharers, err := svc.Sharers(r.Context(), kind, userID, resourceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sharers)
	}
}

func share(ctx context.Context, svc ShareService, kind sharing.Kind, actorID, resourceID uuid.UUID, username string) error {
	switch kind {
	case sharing.KindMeal:
		return svc.ShareMeal(ctx, actorID, resourceID, username)
	case sharing.KindMealPlan:
		return svc.ShareMealPlan(ctx, actorID, resourceID, username)
	case sharing.KindShoppingList:
		return svc.ShareShoppingList(ctx, actorID, resourceID, username)
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "unknown share kind")
}

func unshare(ctx context.Context, svc ShareService, kind sharing.Kind, actorID, resourceID uuid.UUID, username string) error {
	switch kind {
	case sharing.KindMeal:
		return svc.UnshareMeal(ctx, actorID, resourceID, username)
	case sharing.KindMealPlan:
		return svc.UnshareMealPlan(ctx, actorID, resourceID, username)
	case sharing.KindShoppingList:
		return svc.UnshareShoppingList(ctx, actorID, resourceID, username)
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "unknown share kind")
}
