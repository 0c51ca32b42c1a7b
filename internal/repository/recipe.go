package repository

import (
	"context"
	"fmt"

	"recipe-share-backend/internal/models"
)

// RecipeRepository handles document operations for recipes
type RecipeRepository struct {
	store DocumentStore
}

// NewRecipeRepository creates a new recipe repository
func NewRecipeRepository(store DocumentStore) *RecipeRepository {
	return &RecipeRepository{store: store}
}

// Create writes a new recipe document
func (r *RecipeRepository) Create(ctx context.Context, id string, fields map[string]any) error {
	if err := r.store.Set(ctx, models.CollectionRecipes, id, fields); err != nil {
		return fmt.Errorf("failed to create recipe: %w", err)
	}
	return nil
}

// GetByID retrieves a recipe by ID
func (r *RecipeRepository) GetByID(ctx context.Context, id string) (*models.Recipe, error) {
	doc, err := r.store.Get(ctx, models.CollectionRecipes, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return decodeRecipe(doc)
}

// Update merges fields into an existing recipe
func (r *RecipeRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := r.store.Update(ctx, models.CollectionRecipes, id, fields); err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}
	return nil
}

// AttachImage stores the image URL and clears the pending flag
func (r *RecipeRepository) AttachImage(ctx context.Context, id, url string) error {
	return r.Update(ctx, id, map[string]any{
		"image":        url,
		"imagePending": false,
	})
}

// Delete deletes a recipe by ID
func (r *RecipeRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, models.CollectionRecipes, id); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return nil
}

// ListByOwner retrieves a user's recipes, newest first
func (r *RecipeRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Recipe, error) {
	return r.list(ctx, Query{
		Filters:   []Filter{Equal("createdBy", userID)},
		OrderBy:   "createdAt",
		Direction: Desc,
	})
}

// ListAll retrieves every recipe, newest first
func (r *RecipeRepository) ListAll(ctx context.Context) ([]*models.Recipe, error) {
	return r.list(ctx, Query{OrderBy: "createdAt", Direction: Desc})
}

// ListByCategory retrieves the recipes tagged with a category, in store order
func (r *RecipeRepository) ListByCategory(ctx context.Context, categoryID string) ([]*models.Recipe, error) {
	return r.list(ctx, Query{
		Filters: []Filter{ArrayContains("categories", categoryID)},
	})
}

// ListPendingImage retrieves a user's recipes still waiting for their image
func (r *RecipeRepository) ListPendingImage(ctx context.Context, userID string) ([]*models.Recipe, error) {
	return r.list(ctx, Query{
		Filters: []Filter{
			Equal("createdBy", userID),
			Equal("imagePending", true),
		},
		OrderBy:   "createdAt",
		Direction: Desc,
	})
}

func (r *RecipeRepository) list(ctx context.Context, q Query) ([]*models.Recipe, error) {
	docs, err := r.store.Query(ctx, models.CollectionRecipes, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	recipes := make([]*models.Recipe, 0, len(docs))
	for _, doc := range docs {
		recipe, err := decodeRecipe(doc)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

func decodeRecipe(doc *Document) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := doc.DataTo(&recipe); err != nil {
		return nil, fmt.Errorf("failed to decode recipe: %w", err)
	}
	recipe.ID = doc.ID
	if recipe.Ingredients == nil {
		recipe.Ingredients = []string{}
	}
	if recipe.Steps == nil {
		recipe.Steps = []string{}
	}
	if recipe.Categories == nil {
		recipe.Categories = []string{}
	}
	return &recipe, nil
}
