package repository

import (
	"context"
	"fmt"

	"recipe-share-backend/internal/models"
)

// CategoryRepository reads the pre-seeded categories
type CategoryRepository struct {
	store DocumentStore
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(store DocumentStore) *CategoryRepository {
	return &CategoryRepository{store: store}
}

// GetByID retrieves a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	doc, err := r.store.Get(ctx, models.CollectionCategories, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return decodeCategory(doc)
}

// List retrieves all categories ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	docs, err := r.store.Query(ctx, models.CollectionCategories, Query{OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]*models.Category, 0, len(docs))
	for _, doc := range docs {
		category, err := decodeCategory(doc)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

// Put overwrites a category. Only the seeder writes categories.
func (r *CategoryRepository) Put(ctx context.Context, category *models.Category) error {
	fields := map[string]any{
		"name":        category.Name,
		"description": category.Description,
		"catimg":      category.CatImg,
	}
	if err := r.store.Set(ctx, models.CollectionCategories, category.ID, fields); err != nil {
		return fmt.Errorf("failed to put category: %w", err)
	}
	return nil
}

func decodeCategory(doc *Document) (*models.Category, error) {
	var category models.Category
	if err := doc.DataTo(&category); err != nil {
		return nil, fmt.Errorf("failed to decode category: %w", err)
	}
	category.ID = doc.ID
	return &category, nil
}
