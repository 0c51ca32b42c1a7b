package handlers

import (
	"encoding/json"
	"net/http"

	"recipe-share-backend/internal/middleware"
	"recipe-share-backend/internal/services"
)

// ProfileHandler handles the caller's own profile
type ProfileHandler struct {
	profileService *services.ProfileService
	maxImageBytes  int64
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService, maxImageBytes int64) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		maxImageBytes:  maxImageBytes,
	}
}

// Get handles GET /api/v1/me/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.profileService.LoadOwn(ctx, userID)
	if err != nil {
		respondAppError(w, err, userID, "Failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Update handles PATCH /api/v1/me/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var input services.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.profileService.Save(ctx, userID, input)
	if err != nil {
		respondAppError(w, err, userID, "Failed to save profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UploadImage handles POST /api/v1/me/profile/image
func (h *ProfileHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	image, err := readImage(r, h.maxImageBytes)
	if err != nil {
		respondAppError(w, err, userID, "Invalid image upload")
		return
	}

	change, err := h.profileService.ChangeImage(ctx, userID, image)
	if err != nil {
		respondAppError(w, err, userID, "Failed to change profile image")
		return
	}
	respondJSON(w, http.StatusOK, change)
}
