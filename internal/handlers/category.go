package handlers

import (
	"net/http"

	"recipe-share-backend/internal/middleware"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// CategoryHandler serves categories and the home feed
type CategoryHandler struct {
	catalog *services.CatalogService
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(catalog *services.CatalogService) *CategoryHandler {
	return &CategoryHandler{catalog: catalog}
}

// CategoriesResponse wraps a category listing
type CategoriesResponse struct {
	Categories []*models.Category `json:"categories"`
}

// List handles GET /api/v1/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondAppError(w, err, "", "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	respondJSON(w, http.StatusOK, CategoriesResponse{Categories: categories})
}

// Get handles GET /api/v1/categories/{id}
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	category, err := h.catalog.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, err, "", "Failed to get category")
		return
	}
	respondJSON(w, http.StatusOK, category)
}

// Home handles GET /api/v1/home. Anonymous callers get no profile.
func (h *CategoryHandler) Home(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	feed, err := h.catalog.Home(r.Context(), userID)
	if err != nil {
		respondAppError(w, err, userID, "Failed to load home feed")
		return
	}
	respondJSON(w, http.StatusOK, feed)
}
