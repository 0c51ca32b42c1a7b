package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/middleware"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/services"
	"recipe-share-backend/internal/storage"

	"github.com/go-chi/chi/v5"
)

// RecipeHandler handles recipe-related HTTP requests
type RecipeHandler struct {
	recipeService *services.RecipeService
	maxImageBytes int64
}

// NewRecipeHandler creates a new recipe handler
func NewRecipeHandler(recipeService *services.RecipeService, maxImageBytes int64) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		maxImageBytes: maxImageBytes,
	}
}

// RecipesResponse wraps a recipe listing
type RecipesResponse struct {
	Recipes []*models.Recipe `json:"recipes"`
}

// Create handles POST /api/v1/recipes. A multipart body carries the recipe as JSON
// in the "recipe" field and an optional "image" file.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	input, image, err := h.readRecipe(r)
	if err != nil {
		respondAppError(w, err, userID, "Invalid recipe request")
		return
	}

	session := services.NewEditSession()
	if err := session.Edit(input); err != nil {
		respondAppError(w, err, userID, "Failed to start recipe edit")
		return
	}

	recipe, err := h.recipeService.Submit(ctx, session, image)
	if err != nil {
		if session.RecipeID != "" {
			// saved without its image; the client can retry the upload alone
			respondJSON(w, statusFor(err), map[string]any{
				"error":        err.Error(),
				"code":         apperror.CodeOf(err),
				"recipe_id":    session.RecipeID,
				"imagePending": true,
			})
			return
		}
		respondAppError(w, err, userID, "Failed to create recipe")
		return
	}

	respondJSON(w, http.StatusCreated, recipe)
}

// Update handles PUT /api/v1/recipes/{id}
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var input services.RecipeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	recipe, err := h.recipeService.CreateOrUpdate(ctx, chi.URLParam(r, "id"), input)
	if err != nil {
		respondAppError(w, err, userID, "Failed to update recipe")
		return
	}

	respondJSON(w, http.StatusOK, recipe)
}

// UploadImage handles POST /api/v1/recipes/{id}/image
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	image, err := readImage(r, h.maxImageBytes)
	if err != nil {
		respondAppError(w, err, userID, "Invalid image upload")
		return
	}

	recipe, err := h.recipeService.AttachImage(ctx, chi.URLParam(r, "id"), image)
	if err != nil {
		respondAppError(w, err, userID, "Failed to attach recipe image")
		return
	}

	respondJSON(w, http.StatusOK, recipe)
}

// Delete handles DELETE /api/v1/recipes/{id}
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.recipeService.Remove(ctx, chi.URLParam(r, "id")); err != nil {
		respondAppError(w, err, middleware.GetUserID(ctx), "Failed to delete recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /api/v1/recipes/{id}
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	detail, err := h.recipeService.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err, middleware.GetUserID(ctx), "Failed to get recipe")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// ListAll handles GET /api/v1/recipes
func (h *RecipeHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipeService.ListAll(r.Context())
	h.respondList(w, r, recipes, err)
}

// ListByCategory handles GET /api/v1/categories/{id}/recipes
func (h *RecipeHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipeService.ListByCategory(r.Context(), chi.URLParam(r, "id"))
	h.respondList(w, r, recipes, err)
}

// ListMine handles GET /api/v1/me/recipes
func (h *RecipeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipeService.ListMine(r.Context(), middleware.GetUserID(r.Context()))
	h.respondList(w, r, recipes, err)
}

// ListPendingImages handles GET /api/v1/me/recipes/pending-image
func (h *RecipeHandler) ListPendingImages(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipeService.ListPendingImages(r.Context(), middleware.GetUserID(r.Context()))
	h.respondList(w, r, recipes, err)
}

func (h *RecipeHandler) respondList(w http.ResponseWriter, r *http.Request, recipes []*models.Recipe, err error) {
	if err != nil {
		respondAppError(w, err, middleware.GetUserID(r.Context()), "Failed to list recipes")
		return
	}
	if recipes == nil {
		recipes = []*models.Recipe{}
	}
	respondJSON(w, http.StatusOK, RecipesResponse{Recipes: recipes})
}

func (h *RecipeHandler) readRecipe(r *http.Request) (services.RecipeInput, storage.ImageRef, error) {
	var input services.RecipeInput

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return input, nil, apperror.Validation("body", "Invalid request body")
		}
		return input, nil, nil
	}

	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		return input, nil, apperror.Validation("body", "Invalid multipart form")
	}
	if err := json.Unmarshal([]byte(r.FormValue("recipe")), &input); err != nil {
		return input, nil, apperror.Validation("recipe", "recipe field must be JSON")
	}
	if len(r.MultipartForm.File["image"]) == 0 {
		return input, nil, nil
	}
	image, err := readImage(r, h.maxImageBytes)
	if err != nil {
		return input, nil, err
	}
	return input, image, nil
}
