package recipes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// Store defines the persistence surface consumed by Service.
type Store interface {
	Insert(ctx context.Context, recipe Recipe) (Recipe, error)
	List(ctx context.Context, tenantID int64) ([]Recipe, error)
	Get(ctx context.Context, tenantID, id int64) (Recipe, error)
	Update(ctx context.Context, recipe Recipe) (Recipe, error)
	Delete(ctx context.Context, tenantID, id int64) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recipeColumns = `id, tenant_id, name, slug, description, servings, ingredients, instructions, created_at, updated_at`

func (r *Repository) Insert(ctx context.Context, recipe Recipe) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO recipes (tenant_id, name, slug, description, servings, ingredients, instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+recipeColumns,
		recipe.TenantID, recipe.Name, recipe.Slug, recipe.Description, recipe.Servings, recipe.Ingredients, recipe.Instructions)
	out, err := scanRecipe(row)
	if err != nil {
		return Recipe{}, mapWriteError(err, recipe.Slug)
	}
	return out, nil
}

func (r *Repository) List(ctx context.Context, tenantID int64) ([]Recipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := []Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, rows.Err()
}

func (r *Repository) Get(ctx context.Context, tenantID, id int64) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	recipe, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipe{}, fmt.Errorf("%w: recipe %d", httpx.ErrNotFound, id)
		}
		return Recipe{}, err
	}
	return recipe, nil
}

func (r *Repository) Update(ctx context.Context, recipe Recipe) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `UPDATE recipes
		SET name = $3, slug = $4, description = $5, servings = $6, ingredients = $7, instructions = $8, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+recipeColumns,
		recipe.TenantID, recipe.ID, recipe.Name, recipe.Slug, recipe.Description, recipe.Servings, recipe.Ingredients, recipe.Instructions)
	out, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipe{}, fmt.Errorf("%w: recipe %d", httpx.ErrNotFound, recipe.ID)
		}
		return Recipe{}, mapWriteError(err, recipe.Slug)
	}
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recipes WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecipe(row pgx.Row) (Recipe, error) {
	var recipe Recipe
	err := row.Scan(&recipe.ID, &recipe.TenantID, &recipe.Name, &recipe.Slug, &recipe.Description,
		&recipe.Servings, &recipe.Ingredients, &recipe.Instructions, &recipe.CreatedAt, &recipe.UpdatedAt)
	return recipe, err
}

func mapWriteError(err error, slug string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: a recipe with slug %q already exists", httpx.ErrConflict, slug)
	}
	return err
}

var _ Store = (*Repository)(nil)
