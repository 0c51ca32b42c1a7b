package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator resolves a session token to a user ID
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuthMiddleware rejects requests without a live bearer token
func AuthMiddleware(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondError(w, "Authorization header required", "unauthenticated", http.StatusUnauthorized)
				return
			}

			userID, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, apperror.ErrAuth) {
					status = http.StatusInternalServerError
				}
				respondError(w, err.Error(), apperror.CodeOf(err), status)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), token, userID)))
		})
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets anonymous requests through
func OptionalAuth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if userID, err := authenticator.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(withUser(r.Context(), token, userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func withUser(ctx context.Context, token, userID string) context.Context {
	ctx = auth.WithToken(ctx, token)
	return context.WithValue(ctx, userIDKey, userID)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
