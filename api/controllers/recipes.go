package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/api/responses"
	"github.com/angelmondragon/mealshare-backend/api/validators"
	"github.com/angelmondragon/mealshare-backend/internal/recipes"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

type bulkIngredientsRequest struct {
	Ingredients []recipes.IngredientInput `json:"ingredients" validate:"required,min=1,max=100,dive"`
}

func CreateRecipe(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mealID, err := validators.ParseUUIDParam(r, "mealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recipes.CreateRecipeInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recipe, err := svc.CreateRecipe(r.Context(), userID, mealID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, recipe)
	}
}

// AddIngredient appends one ingredient and materializes it onto every list
// holding the meal.
func AddIngredient(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mealID, err := validators.ParseUUIDParam(r, "mealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recipes.IngredientInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ingredient, err := svc.AddIngredient(r.Context(), userID, mealID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ingredient)
	}
}

// AddIngredients is all-or-nothing: one invalid entry rejects the batch.
func AddIngredients(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mealID, err := validators.ParseUUIDParam(r, "mealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body bulkIngredientsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.AddIngredients(r.Context(), userID, mealID, body.Ingredients)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func UpdateIngredient(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ingredientID, err := validators.ParseUUIDParam(r, "ingredientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recipes.UpdateIngredientInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ingredient, err := svc.UpdateIngredient(r.Context(), userID, ingredientID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ingredient)
	}
}

func DeleteIngredient(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ingredientID, err := validators.ParseUUIDParam(r, "ingredientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteIngredient(r.Context(), userID, ingredientID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func AddIngredientSection(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return addSection(svc, logg, func(ctx context.Context, actorID, mealID uuid.UUID, input recipes.SectionInput) (*recipes.SectionDTO, error) {
		return svc.AddIngredientSection(ctx, actorID, mealID, input)
	})
}

func AddStepSection(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return addSection(svc, logg, func(ctx context.Context, actorID, mealID uuid.UUID, input recipes.SectionInput) (*recipes.SectionDTO, error) {
		return svc.AddStepSection(ctx, actorID, mealID, input)
	})
}

type sectionAdder func(ctx context.Context, actorID, mealID uuid.UUID, input recipes.SectionInput) (*recipes.SectionDTO, error)

func addSection(svc recipes.Service, logg *logger.Logger, add sectionAdder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mealID, err := validators.ParseUUIDParam(r, "mealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recipes.SectionInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		section, err := add(r.Context(), userID, mealID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, section)
	}
}

func AddStep(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mealID, err := validators.ParseUUIDParam(r, "mealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recipes.StepInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		step, err := svc.AddStep(r.Context(), userID, mealID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, step)
	}
}

func DeleteStep(svc recipes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("recipes service"))
			return
		}
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stepID, err := validators.ParseUUIDParam(r, "stepId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteStep(r.Context(), userID, stepID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
