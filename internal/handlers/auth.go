package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"recipe-share-backend/internal/auth"
	"recipe-share-backend/internal/middleware"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration and sessions
type AuthHandler struct {
	gateway *auth.Gateway
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(gateway *auth.Gateway) *AuthHandler {
	return &AuthHandler{gateway: gateway}
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Location string `json:"location"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.gateway.Register(r.Context(), req.Email, req.Password, req.Username, req.FullName, req.Location)
	if err != nil {
		respondAppError(w, err, "", "Registration failed")
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.gateway.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAppError(w, err, "", "Login failed")
		return
	}

	log.Info().Str("user_id", session.User.ID).Msg("User signed in")
	respondJSON(w, http.StatusOK, session)
}

// Logout handles POST /api/v1/auth/logout. Calling it twice is fine.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := h.gateway.Logout(r.Context(), token); err != nil {
		respondAppError(w, err, "", "Logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.gateway.CurrentUser(ctx)
	if err != nil {
		respondAppError(w, err, middleware.GetUserID(ctx), "Failed to get current user")
		return
	}
	if user == nil {
		respondError(w, "Not signed in", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
