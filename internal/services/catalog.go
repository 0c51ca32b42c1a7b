package services

import (
	"context"
	"errors"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/repository"

	"golang.org/x/sync/errgroup"
)

// HomeFeed is everything the home screen shows on entry
type HomeFeed struct {
	Profile    *models.User       `json:"profile,omitempty"`
	Categories []*models.Category `json:"categories"`
	Recipes    []*models.Recipe   `json:"recipes"`
}

// CatalogService serves categories and the home feed
type CatalogService struct {
	categories *repository.CategoryRepository
	recipes    *repository.RecipeRepository
	users      *repository.UserRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	categories *repository.CategoryRepository,
	recipes *repository.RecipeRepository,
	users *repository.UserRepository,
) *CatalogService {
	return &CatalogService{
		categories: categories,
		recipes:    recipes,
		users:      users,
	}
}

// ListCategories returns all categories ordered by name
func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.categories.List(ctx)
}

// GetCategory returns one category
func (s *CatalogService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.categories.GetByID(ctx, id)
}

// Home loads the profile, categories and all recipes concurrently.
// userID may be empty for anonymous visitors.
func (s *CatalogService) Home(ctx context.Context, userID string) (*HomeFeed, error) {
	feed := &HomeFeed{}
	g, gctx := errgroup.WithContext(ctx)

	if userID != "" {
		g.Go(func() error {
			user, err := s.users.GetByID(gctx, userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					return nil
				}
				return err
			}
			feed.Profile = user
			return nil
		})
	}
	g.Go(func() error {
		categories, err := s.categories.List(gctx)
		feed.Categories = categories
		return err
	})
	g.Go(func() error {
		recipes, err := s.recipes.ListAll(gctx)
		feed.Recipes = recipes
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feed, nil
}
