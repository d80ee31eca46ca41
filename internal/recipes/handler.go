package recipes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
	"github.com/pantryplan/pantryplan/internal/rbac"
	"github.com/pantryplan/pantryplan/internal/shared"
)

// Handler manages recipe endpoints. Routes are mounted under a tenant
// path so the guard resolves the tenant from the URL.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     rbac.Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers recipe routes relative to /tenants/{tenantID}/recipes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRecipeRead))
		r.Get("/", h.listRecipes)
		r.Get("/{recipeID}", h.getRecipe)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRecipeCreate))
		r.Post("/", h.createRecipe)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRecipeUpdate))
		r.Put("/{recipeID}", h.updateRecipe)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRecipeDelete))
		r.Delete("/{recipeID}", h.deleteRecipe)
	})
}

type createRecipeRequest struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=2000"`
	Servings     int      `json:"servings" validate:"min=0,max=100"`
	Ingredients  []string `json:"ingredients" validate:"dive,max=200"`
	Instructions string   `json:"instructions" validate:"max=10000"`
}

type updateRecipeRequest struct {
	Name         *string  `json:"name" validate:"omitempty,max=200"`
	Description  *string  `json:"description" validate:"omitempty,max=2000"`
	Servings     *int     `json:"servings" validate:"omitempty,min=0,max=100"`
	Ingredients  []string `json:"ingredients" validate:"omitempty,dive,max=200"`
	Instructions *string  `json:"instructions" validate:"omitempty,max=10000"`
}

type recipeJSON struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenantId"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	Servings     int       `json:"servings"`
	Ingredients  []string  `json:"ingredients"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, validationDetail(err)))
		return
	}
	recipe, err := h.service.Create(r.Context(), tenantID, CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		Servings:     req.Servings,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecipeJSON(recipe))
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipes, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]recipeJSON, len(recipes))
	for i, recipe := range recipes {
		out[i] = toRecipeJSON(recipe)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := pathID(r, "recipeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipe, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecipeJSON(recipe))
}

func (h *Handler) updateRecipe(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := pathID(r, "recipeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, validationDetail(err)))
		return
	}
	recipe, err := h.service.Update(r.Context(), tenantID, id, UpdateInput{
		Name:         req.Name,
		Description:  req.Description,
		Servings:     req.Servings,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecipeJSON(recipe))
}

func (h *Handler) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := pathID(r, "recipeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), tenantID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", httpx.ErrValidation, name)
	}
	return id, nil
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("field %s failed %s validation", verrs[0].Field(), verrs[0].Tag())
	}
	return "invalid request"
}

func toRecipeJSON(recipe Recipe) recipeJSON {
	ingredients := recipe.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return recipeJSON{
		ID:           recipe.ID,
		TenantID:     recipe.TenantID,
		Name:         recipe.Name,
		Slug:         recipe.Slug,
		Description:  recipe.Description,
		Servings:     recipe.Servings,
		Ingredients:  ingredients,
		Instructions: recipe.Instructions,
		CreatedAt:    recipe.CreatedAt,
		UpdatedAt:    recipe.UpdatedAt,
	}
}
