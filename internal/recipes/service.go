package recipes

import (
	"context"
	"fmt"
	"strings"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// Service implements recipe workflows on top of Store.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateInput carries the fields of a new recipe.
type CreateInput struct {
	Name         string
	Description  string
	Servings     int
	Ingredients  []string
	Instructions string
}

// Create stores a new recipe for the tenant.
func (s *Service) Create(ctx context.Context, tenantID int64, input CreateInput) (Recipe, error) {
	recipe := Recipe{
		TenantID:     tenantID,
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		Servings:     input.Servings,
		Ingredients:  cleanIngredients(input.Ingredients),
		Instructions: strings.TrimSpace(input.Instructions),
	}
	if err := validateRecipe(recipe); err != nil {
		return Recipe{}, err
	}
	recipe.Slug = Slugify(recipe.Name)
	return s.store.Insert(ctx, recipe)
}

// List returns the tenant's recipes ordered by name.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Recipe, error) {
	return s.store.List(ctx, tenantID)
}

// Get loads one recipe scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Recipe, error) {
	return s.store.Get(ctx, tenantID, id)
}

// UpdateInput carries optional updates. Nil fields keep current values.
type UpdateInput struct {
	Name         *string
	Description  *string
	Servings     *int
	Ingredients  []string
	Instructions *string
}

// Update applies the changes and returns the updated recipe.
func (s *Service) Update(ctx context.Context, tenantID, id int64, input UpdateInput) (Recipe, error) {
	recipe, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return Recipe{}, err
	}
	if input.Name != nil {
		recipe.Name = strings.TrimSpace(*input.Name)
		recipe.Slug = Slugify(recipe.Name)
	}
	if input.Description != nil {
		recipe.Description = strings.TrimSpace(*input.Description)
	}
	if input.Servings != nil {
		recipe.Servings = *input.Servings
	}
	if input.Ingredients != nil {
		recipe.Ingredients = cleanIngredients(input.Ingredients)
	}
	if input.Instructions != nil {
		recipe.Instructions = strings.TrimSpace(*input.Instructions)
	}
	if err := validateRecipe(recipe); err != nil {
		return Recipe{}, err
	}
	return s.store.Update(ctx, recipe)
}

// Delete removes a recipe scoped to the tenant.
func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	rows, err := s.store.Delete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: recipe %d", httpx.ErrNotFound, id)
	}
	return nil
}

func validateRecipe(recipe Recipe) error {
	if recipe.Name == "" {
		return fmt.Errorf("%w: recipe name is required", httpx.ErrValidation)
	}
	if Slugify(recipe.Name) == "" {
		return fmt.Errorf("%w: recipe name must contain letters or digits", httpx.ErrValidation)
	}
	if recipe.Servings < 0 {
		return fmt.Errorf("%w: servings cannot be negative", httpx.ErrValidation)
	}
	return nil
}

func cleanIngredients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
