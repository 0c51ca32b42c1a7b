package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/repository"
	"recipe-share-backend/internal/storage"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// RecipeInput holds the editable fields of a recipe. On update, blank strings and nil
// lists are left as stored; an empty non-nil list clears the field.
type RecipeInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CookTime    string   `json:"cookTime"`
	Servings    string   `json:"servings"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Categories  []string `json:"categories"`
}

func (in RecipeInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperror.Validation("title", "title is required")
	}
	return nil
}

// patch returns only the fields an update should merge
func (in RecipeInput) patch() map[string]any {
	fields := map[string]any{}
	for name, value := range map[string]string{
		"title":       in.Title,
		"description": in.Description,
		"cookTime":    in.CookTime,
		"servings":    in.Servings,
	} {
		if strings.TrimSpace(value) != "" {
			fields[name] = value
		}
	}
	for name, values := range map[string][]string{
		"ingredients": in.Ingredients,
		"steps":       in.Steps,
		"categories":  in.Categories,
	} {
		if values != nil {
			fields[name] = values
		}
	}
	return fields
}

func (in RecipeInput) fields() map[string]any {
	return map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"cookTime":    in.CookTime,
		"servings":    in.Servings,
		"ingredients": nonNil(in.Ingredients),
		"steps":       nonNil(in.Steps),
		"categories":  nonNil(in.Categories),
	}
}

// RecipeService handles recipe-related business logic
type RecipeService struct {
	recipes    *repository.RecipeRepository
	users      *repository.UserRepository
	categories *repository.CategoryRepository
	blobs      Uploader
	identity   Identity
	events     EventPublisher
}

// NewRecipeService creates a new recipe service. events may be nil.
func NewRecipeService(
	recipes *repository.RecipeRepository,
	users *repository.UserRepository,
	categories *repository.CategoryRepository,
	blobs Uploader,
	identity Identity,
	events EventPublisher,
) *RecipeService {
	if events == nil {
		events = nopPublisher{}
	}
	return &RecipeService{
		recipes:    recipes,
		users:      users,
		categories: categories,
		blobs:      blobs,
		identity:   identity,
		events:     events,
	}
}

// CreateOrUpdate creates a recipe when recipeID is empty, otherwise merges the given fields
// into it. A blank title on update keeps the stored one. createdBy and createdAt are never
// touched by an update.
func (s *RecipeService) CreateOrUpdate(ctx context.Context, recipeID string, input RecipeInput) (*models.Recipe, error) {
	return s.save(ctx, recipeID, input, false)
}

// Submit saves the session's fields and, when image is given, attaches it as a second step.
// If the image step fails the recipe stays saved with imagePending set, and AttachImage resumes it.
func (s *RecipeService) Submit(ctx context.Context, session *EditSession, image storage.ImageRef) (*models.Recipe, error) {
	if err := session.transition(StateSubmitting); err != nil {
		return nil, err
	}

	recipe, err := s.save(ctx, session.RecipeID, session.Input, image != nil)
	if err != nil {
		session.fail(err)
		return nil, err
	}
	session.RecipeID = recipe.ID
	if err := session.transition(StateSaved); err != nil {
		return nil, err
	}
	if image == nil {
		return recipe, nil
	}

	if err := session.transition(StateAwaitingImage); err != nil {
		return nil, err
	}
	recipe, err = s.AttachImage(ctx, session.RecipeID, image)
	if err != nil {
		session.fail(err)
		return nil, err
	}
	if err := session.transition(StateImageAttached); err != nil {
		return nil, err
	}
	return recipe, nil
}

// AttachImage uploads an image and stores its URL on the recipe. If the document update
// fails the uploaded blob is deleted again.
func (s *RecipeService) AttachImage(ctx context.Context, recipeID string, image storage.ImageRef) (*models.Recipe, error) {
	caller, err := requireCaller(ctx, s.identity, "Please log in to upload images.")
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, recipeID, caller.ID); err != nil {
		return nil, err
	}

	url, err := s.blobs.UploadBlob(ctx, storage.NamespaceRecipeImages, recipeID, image)
	if err != nil {
		return nil, err
	}

	if err := s.recipes.AttachImage(ctx, recipeID, url); err != nil {
		if delErr := s.blobs.DeleteBlob(ctx, url); delErr != nil {
			log.Error().
				Err(delErr).
				Str("recipe_id", recipeID).
				Str("url", url).
				Msg("Failed to delete image after recipe update failed")
		}
		return nil, err
	}

	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", caller.ID).
		Str("recipe_id", recipeID).
		Msg("Recipe image attached")
	s.events.Publish(caller.ID, Event{Type: EventRecipeImageAttached, RecipeID: recipeID, Image: url})

	return recipe, nil
}

// Get returns a recipe with its author's username and its category names
func (s *RecipeService) Get(ctx context.Context, recipeID string) (*models.RecipeDetail, error) {
	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	detail := &models.RecipeDetail{Recipe: recipe, CategoryNames: []string{}}

	author, err := s.users.GetByID(ctx, recipe.CreatedBy)
	switch {
	case err == nil:
		detail.AuthorUsername = author.Username
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	}

	if len(recipe.Categories) > 0 {
		categories, err := s.categories.List(ctx)
		if err != nil {
			return nil, err
		}
		names := make(map[string]string, len(categories))
		for _, c := range categories {
			names[c.ID] = c.Name
		}
		for _, id := range recipe.Categories {
			if name, ok := names[id]; ok {
				detail.CategoryNames = append(detail.CategoryNames, name)
			}
		}
	}

	return detail, nil
}

// ListMine returns a user's recipes, newest first
func (s *RecipeService) ListMine(ctx context.Context, userID string) ([]*models.Recipe, error) {
	return s.recipes.ListByOwner(ctx, userID)
}

// ListAll returns every recipe, newest first
func (s *RecipeService) ListAll(ctx context.Context) ([]*models.Recipe, error) {
	return s.recipes.ListAll(ctx)
}

// ListByCategory returns the recipes tagged with categoryID, newest first
func (s *RecipeService) ListByCategory(ctx context.Context, categoryID string) ([]*models.Recipe, error) {
	recipes, err := s.recipes.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(recipes)
	return recipes, nil
}

// ListPendingImages returns a user's recipes whose image step never completed
func (s *RecipeService) ListPendingImages(ctx context.Context, userID string) ([]*models.Recipe, error) {
	return s.recipes.ListPendingImage(ctx, userID)
}

// Remove deletes a recipe owned by the caller. Its image blob is left in place.
func (s *RecipeService) Remove(ctx context.Context, recipeID string) error {
	caller, err := requireCaller(ctx, s.identity, "Please log in to delete recipes.")
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, recipeID, caller.ID); err != nil {
		return err
	}

	if err := s.recipes.Delete(ctx, recipeID); err != nil {
		return err
	}

	log.Info().
		Str("user_id", caller.ID).
		Str("recipe_id", recipeID).
		Msg("Recipe deleted")
	s.events.Publish(caller.ID, Event{Type: EventRecipeRemoved, RecipeID: recipeID})

	return nil
}

func (s *RecipeService) save(ctx context.Context, recipeID string, input RecipeInput, imagePending bool) (*models.Recipe, error) {
	caller, err := requireCaller(ctx, s.identity, "Please log in to add recipes.")
	if err != nil {
		return nil, err
	}
	if recipeID == "" {
		if err := input.validate(); err != nil {
			return nil, err
		}
		fields := input.fields()
		recipeID = newRecipeID()
		fields["image"] = ""
		fields["imagePending"] = imagePending
		fields["createdBy"] = caller.ID
		fields["createdAt"] = repository.ServerTimestamp
		if err := s.recipes.Create(ctx, recipeID, fields); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.owned(ctx, recipeID, caller.ID); err != nil {
			return nil, err
		}
		fields := input.patch()
		if imagePending {
			fields["imagePending"] = true
		}
		if len(fields) > 0 {
			if err := s.recipes.Update(ctx, recipeID, fields); err != nil {
				return nil, err
			}
		}
	}

	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", caller.ID).
		Str("recipe_id", recipeID).
		Msg("Recipe saved")
	s.events.Publish(caller.ID, Event{Type: EventRecipeSaved, RecipeID: recipeID})

	return recipe, nil
}

// owned loads a recipe and checks that userID created it
func (s *RecipeService) owned(ctx context.Context, recipeID, userID string) (*models.Recipe, error) {
	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.CreatedBy != userID {
		return nil, apperror.PermissionDenied(fmt.Sprintf("recipe %s belongs to another user", recipeID))
	}
	return recipe, nil
}

func newRecipeID() string {
	return "recipe_" + xid.New().String()
}

func sortNewestFirst(recipes []*models.Recipe) {
	sort.SliceStable(recipes, func(i, j int) bool {
		return recipes[i].CreatedAt.After(recipes[j].CreatedAt)
	})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
